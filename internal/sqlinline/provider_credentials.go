package sqlinline

const QSelectProviderCredential = `--sql 5b0c7e2a-94d3-4f61-b8a2-1c6e0f9d3a47
select token
from provider_credentials
where provider = $1::text
limit 1;
`

const QUpsertProviderCredential = `--sql c81f2d60-3a7e-4b95-9e04-7d2a5c8b1f36
insert into provider_credentials (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
