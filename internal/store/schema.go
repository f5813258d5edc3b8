package store

// schema defines the bit-stable on-disk layout. Message derived columns
// (transformed_message*, token_set) are nullable and filled lazily by each
// computation's preparation phase — see pkg/engine.
const schema = `
pragma journal_mode=WAL;
pragma synchronous=normal;

create table if not exists metadata (
	property text primary key,
	value text not null
);

create table if not exists message (
	message_id text primary key,
	user_id text not null,
	username text,
	repost_id text,
	reply_id text,
	message text not null,
	transformed_message text,
	transformed_message_length integer,
	transformed_message_hash integer,
	token_set text,
	timestamp real not null
);

create index if not exists message_user_time on message(user_id, timestamp);

create table if not exists message_url (
	message_id text not null references message(message_id),
	url text not null,
	timestamp real not null,
	user_id text not null,
	primary key (message_id, url)
);

create table if not exists resolved_url (
	url text primary key,
	resolved_url text,
	ssl_verified integer,
	resolved_status text
);

create trigger if not exists url_to_resolve after insert on message_url
begin
	insert or ignore into resolved_url(url) values (new.url);
end;

create table if not exists resolved_message_url (
	message_id text not null,
	resolved_url text not null,
	timestamp real not null,
	user_id text not null,
	primary key (message_id, resolved_url)
);
`

// schemaVersion is the current on-disk schema version. Bumping this without
// a migration path is a breaking change; Open refuses to work with a store
// stamped with any other version.
const schemaVersion = "1"

// networkTableSQL returns the DDL for a freshly (re)created edge table for
// the given kind. Each computation drops and rebuilds its own table.
func networkTableSQL(table string) string {
	return `
	create table ` + table + ` (
		user_1 text not null,
		user_2 text not null,
		weight integer not null,
		primary key (user_1, user_2)
	) without rowid;
	`
}
