package sqlinline

const QInsertAsset = `--sql 3466e97b-30ae-4f6e-bbc8-0627978a8428
insert into assets(
  id,
  user_id,
  job_id,
  url,
  storage_key,
  mime_type,
  bytes,
  width,
  height,
  prompt,
  aspect_ratio,
  image_size,
  properties,
  created_at
) values (
  gen_random_uuid(),
  $1::text,
  nullif($2::text, '')::uuid,
  $3::text,
  nullif($4::text, ''),
  nullif($5::text, ''),
  $6::bigint,
  $7::int,
  $8::int,
  $9::text,
  $10::text,
  $11::text,
  coalesce($12::jsonb, '{}'::jsonb),
  now()
) returning id::text, created_at;
`

// QListAssets serves both scopes: 'all' is public read, 'mine' is bound to the caller.
const QListAssets = `--sql 8c4f6629-a17c-40b5-a01e-ea6c111f1300
select
  id::text,
  user_id,
  coalesce(job_id::text, ''),
  url,
  coalesce(storage_key, ''),
  coalesce(mime_type, ''),
  bytes,
  width,
  height,
  prompt,
  aspect_ratio,
  image_size,
  properties,
  created_at
from assets
where ($1::text = 'all' or user_id = $2::text)
order by created_at desc, id desc
limit $3::int offset $4::int;
`
