package engine

import "github.com/kittclouds/coordnet/internal/store"

// partitionQuery is, for each network kind, the self-join that a worker
// runs against its batch of candidate users: it inserts the batch's share
// of edges into the worker-local temporary `local_network` table. Only the
// e_1 side is restricted to the batch (`e_1.user_id in (select user_id
// from user_id)`); e_2 is left unconstrained so a coordinating pair is
// found regardless of which worker's batch its other half falls in.
//
// Placeholder order is always time_window (?1), min_edge_weight (?2), and
// for co_similar_tweet only, similarity_threshold (?3).
var partitionQuery = map[store.Kind]string{
	store.KindCoRetweet: `
		insert into local_network
		select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
		from message e_1
		inner join message e_2
			on e_1.repost_id = e_2.repost_id
			and e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
			and e_1.repost_id is not null
		where e_1.user_id in (select user_id from user_id)
		group by e_1.user_id, e_2.user_id
		having weight >= ?2
	`,
	store.KindCoTweet: `
		insert into local_network
		select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
		from message e_1
		inner join message e_2
			on (e_1.transformed_message_length, e_1.transformed_message_hash, e_1.transformed_message) =
			   (e_2.transformed_message_length, e_2.transformed_message_hash, e_2.transformed_message)
			and e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
			and e_1.repost_id is null
			and e_2.repost_id is null
		where e_1.user_id in (select user_id from user_id)
		group by e_1.user_id, e_2.user_id
		having weight >= ?2
	`,
	store.KindCoReply: `
		insert into local_network
		select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
		from message e_1
		inner join message e_2
			on e_1.reply_id = e_2.reply_id
			and e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
			and e_1.repost_id is null
			and e_2.repost_id is null
			and e_1.reply_id is not null
		where e_1.user_id in (select user_id from user_id)
		group by e_1.user_id, e_2.user_id
		having weight >= ?2
	`,
	store.KindCoSimilarTweet: `
		insert into local_network
		select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
		from message e_1
		inner join message e_2
			on e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
		where e_1.repost_id is null
			and e_2.repost_id is null
			and e_1.token_set is not null
			and e_2.token_set is not null
			and similarity(e_1.token_set, e_2.token_set) >= ?3
			and e_1.user_id in (select user_id from user_id)
		group by e_1.user_id, e_2.user_id
		having weight >= ?2
	`,
	store.KindCoLink: `
		insert into local_network
		select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
		from message_url e_1
		inner join message_url e_2
			on e_1.url = e_2.url
			and e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
		where e_1.user_id in (select user_id from user_id)
		group by e_1.user_id, e_2.user_id
		having weight >= ?2
	`,
}

// resolvedLinkPartitionQuery replaces partitionQuery[store.KindCoLink] when
// the engine is computing the link network over resolved (redirect
// followed) URLs rather than raw ones.
const resolvedLinkPartitionQuery = `
	insert into local_network
	select e_1.user_id as user_1, e_2.user_id as user_2, count(distinct e_1.message_id) as weight
	from resolved_message_url e_1
	inner join resolved_message_url e_2
		on e_1.resolved_url = e_2.resolved_url
		and e_2.timestamp between e_1.timestamp - ?1 and e_1.timestamp + ?1
	where e_1.user_id in (select user_id from user_id)
	group by e_1.user_id, e_2.user_id
	having weight >= ?2
`

// candidateQuery returns, for each kind, the set of users who could
// possibly reach min_edge_weight: any user whose own eligible-message
// count falls below the threshold can never anchor an edge meeting it, so
// pruning them up front shrinks the self-join's working set.
var candidateQuery = map[store.Kind]string{
	store.KindCoRetweet: `
		select user_id from message where repost_id is not null
		group by user_id having count(*) >= ?
	`,
	store.KindCoTweet: `
		select user_id from message where repost_id is null
		group by user_id having count(*) >= ?
	`,
	store.KindCoReply: `
		select user_id from message where repost_id is null and reply_id is not null
		group by user_id having count(*) >= ?
	`,
	store.KindCoSimilarTweet: `
		select user_id from message where repost_id is null and token_set is not null
		group by user_id having count(*) >= ?
	`,
	store.KindCoLink: `
		select user_id from message_url
		group by user_id having count(*) >= ?
	`,
}

// resolvedLinkCandidateQuery replaces candidateQuery[store.KindCoLink] when
// computing the resolved-URL link network.
const resolvedLinkCandidateQuery = `
	select user_id from resolved_message_url
	group by user_id having count(*) >= ?
`

// indexDDL lists the indexes each network kind's self-join depends on for
// a reasonable query plan, applied once before that kind's computation.
var indexDDL = map[store.Kind][]string{
	store.KindCoRetweet: {
		`create index if not exists message_user_time on message(user_id, timestamp)`,
		`create index if not exists message_repost_time on message(repost_id, timestamp) where repost_id is not null`,
	},
	store.KindCoTweet: {
		`create index if not exists message_content on message(
			transformed_message_length, transformed_message_hash, timestamp
		) where repost_id is null`,
	},
	store.KindCoReply: {
		`create index if not exists message_user_time on message(user_id, timestamp)`,
		`create index if not exists message_replies on message(reply_id, timestamp) where repost_id is null`,
	},
	store.KindCoSimilarTweet: {
		`create index if not exists message_user_time on message(user_id, timestamp)`,
		`create index if not exists message_to_tokenize on message(message_id) where repost_id is null and token_set is null`,
		`create index if not exists message_timestamp on message(timestamp)`,
	},
	store.KindCoLink: {
		`create index if not exists url_message on message_url(url, timestamp)`,
	},
}

const resolvedLinkIndexDDL = `create index if not exists resolved_url_message on resolved_message_url(resolved_url, timestamp)`
