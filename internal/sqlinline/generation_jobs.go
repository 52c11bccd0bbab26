package sqlinline

const QInsertGenerationJob = `--sql dde1950c-546e-4c01-ae9e-e5dd87f506f0
insert into generation_jobs(
  id,
  user_id,
  status,
  prompt,
  aspect_ratio,
  image_size,
  references_json,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::text,
  'queued',
  $2::text,
  $3::text,
  $4::text,
  coalesce($5::jsonb, '[]'::jsonb),
  now(),
  now()
) returning id::text;
`

const QSelectGenerationJobForUser = `--sql 3d6d84f7-327c-412d-af62-89b0d3aab480
select
  id::text,
  user_id,
  status,
  prompt,
  aspect_ratio,
  image_size,
  references_json,
  result_json,
  coalesce(error_message, ''),
  created_at,
  updated_at
from generation_jobs
where id = $1::uuid
  and user_id = $2::text
limit 1;
`

const QClaimNextGenerationJob = `--sql e028a459-dffe-4044-9a80-41abc86d8d8e
with next_job as (
    select id
    from generation_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update generation_jobs
    set status = 'running', updated_at = now()
    where id in (select id from next_job)
    returning id, user_id, status, prompt, aspect_ratio, image_size, references_json, created_at, updated_at
)
select id::text, user_id, status, prompt, aspect_ratio, image_size, references_json, created_at, updated_at
from updated;
`

const QMarkGenerationJobSucceeded = `--sql 33203842-e1c9-4078-ba69-517abd1529b4
update generation_jobs
set status = 'succeeded',
    result_json = $2::jsonb,
    error_message = null,
    updated_at = now()
where id = $1::uuid;
`

const QMarkGenerationJobFailed = `--sql 2b298967-d1e9-4eee-95d9-6c206f416bfb
update generation_jobs
set status = 'failed',
    error_message = $2::text,
    updated_at = now()
where id = $1::uuid;
`
