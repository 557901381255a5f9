package sqlinline

const QInsertActivity = `--sql afbee668-e085-4537-8fb6-c73186d2149a
insert into activities(record_key, actor, action, before, after, out_of_order, ts)
values ($1::text, $2::text, $3::text, $4::jsonb, $5::jsonb, $6::boolean, $7::timestamptz)
returning id;
`

const QListRecentActivities = `--sql ca8743cb-b0a9-4074-a626-3a540b59f2eb
select id, record_key, actor, action, before, after, out_of_order, ts
from activities
order by ts desc, id desc
limit $1::int;
`

const QListActivitiesForOrganization = `--sql 5bef1c4b-1a64-4649-92bb-0438ec941100
select id, record_key, actor, action, before, after, out_of_order, ts
from activities
where record_key = $1::text
order by ts asc, id asc;
`
