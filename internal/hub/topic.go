package hub

// Topic names the resource that changed. Viewers get only the topic and
// re-fetch the resource themselves.
type Topic int

const (
	TopicQueue Topic = iota + 1
	TopicOrder
	TopicBidder
	TopicRoster
	TopicLeader
)

func (t Topic) String() string {
	switch t {
	case TopicQueue:
		return "QUEUE"
	case TopicOrder:
		return "ORDER"
	case TopicBidder:
		return "BIDDER"
	case TopicRoster:
		return "ROSTER"
	case TopicLeader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// Wire is the message type the browser client listens for.
func (t Topic) Wire() string {
	switch t {
	case TopicQueue:
		return "TARGET_UPDATE"
	case TopicOrder:
		return "ORDER_UPDATE"
	case TopicBidder:
		return "BIDDER_UPDATE"
	case TopicRoster:
		return "PARTICIPANT_UPDATE"
	case TopicLeader:
		return "LEADER_UPDATE"
	default:
		return ""
	}
}
