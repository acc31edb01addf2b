package telegram

// Channel is a resolved public channel or supergroup.
type Channel struct {
	ID                int64  // channel id
	AccessHash        int64  // access hash for api calls
	Username          string // username without @
	Title             string // channel title
	ParticipantsCount int    // 0 when unknown
	Megagroup         bool   // supergroup rather than broadcast channel
}

// Participant is one member of a channel as returned by a participants page.
type Participant struct {
	UserID     int64
	AccessHash int64
	Username   string
	FirstName  string
	LastName   string
	Bot        bool
	Deleted    bool
	Admin      bool // admin or creator
}

// ParticipantsPage is one page of channels.getParticipants.
type ParticipantsPage struct {
	Participants []Participant
	// Total is the count reported by the server for the filter.
	Total int
}

// ParticipantFilter selects which participants a page lists.
type ParticipantFilter string

// Filters used for member scraping. Search with an empty query walks the
// full member list where the server allows it, Recent adds recently active
// members that the search may miss on large groups.
const (
	FilterSearch ParticipantFilter = "search"
	FilterRecent ParticipantFilter = "recent"
)

// InviteResult is the outcome of a successful invite call.
type InviteResult struct {
	// MissingInvitee is set when the server accepted the call but could not
	// add the user, which is how privacy restrictions are reported.
	MissingInvitee bool
}

// User is a resolved user peer.
type User struct {
	ID         int64
	AccessHash int64
	Username   string
	Bot        bool
}
