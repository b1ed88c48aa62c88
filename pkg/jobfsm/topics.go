// Copyright 2025 ICN Federation
//
package jobfsm

// TopicAnnouncements and TopicAssignments are exported so cmd/icn-node can
// hand the announcement topic to bidder.Run without either package
// reaching into the other's private constants.
const (
	TopicAnnouncements = "icn/jobs/announce"
	TopicAssignments   = "icn/jobs/assign"

	// topicBidFallback mirrors bidder.handleAnnouncement's own
	// topic+"/bids" fallback: when a direct Send to the submitter fails,
	// the bidder broadcasts here instead, and Engine.Run listens on it as
	// a second inbound source alongside its own direct topic.
	topicBidFallback = TopicAnnouncements + "/bids"
)
