package sqlinline

const QJobStatusEnsureTable = `--sql 973369e1-61ab-4cdd-9004-39fd6dfd3ed5
create table if not exists job_statuses (
    job_id     text primary key,
    status     text not null,
    updated_at timestamptz not null default now()
);
`

const QJobStatusUpsert = `--sql 783d927d-8dac-4a65-a547-ed161f491364
insert into job_statuses (job_id, status, updated_at)
values ($1, $2, now())
on conflict (job_id) do update
set status = excluded.status,
    updated_at = excluded.updated_at;
`

const QJobStatusSelectAll = `--sql 88aa6714-88cd-4087-93e4-accb93a8fe26
select job_id, status
from job_statuses
order by updated_at asc;
`
