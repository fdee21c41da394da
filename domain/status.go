// Package domain holds the types shared by the jobhunt services: the
// application record, the pipeline status taxonomy, user settings and the
// write-side commands.
//
// The taxonomy is static configuration. Statuses partition into four ordered
// board groups:
//
//	active_pipeline: wishlist, applied, follow_up
//	in_progress:     phone_screen, interviewing, technical_test, final_round
//	offers:          offer_received, negotiating
//	closed:          accepted, rejected, withdrawn
package domain

import "fmt"

// Status is one fine-grained pipeline stage of a job application.
type Status string

const (
	StatusWishlist      Status = "wishlist"
	StatusApplied       Status = "applied"
	StatusFollowUp      Status = "follow_up"
	StatusPhoneScreen   Status = "phone_screen"
	StatusInterviewing  Status = "interviewing"
	StatusTechnicalTest Status = "technical_test"
	StatusFinalRound    Status = "final_round"
	StatusOfferReceived Status = "offer_received"
	StatusNegotiating   Status = "negotiating"
	StatusAccepted      Status = "accepted"
	StatusRejected      Status = "rejected"
	StatusWithdrawn     Status = "withdrawn"
)

// Group is a fixed, ordered bucket of related statuses shown as one board column.
type Group string

const (
	GroupActivePipeline Group = "active_pipeline"
	GroupInProgress     Group = "in_progress"
	GroupOffers         Group = "offers"
	GroupClosed         Group = "closed"
)

// Groups lists the board columns in display order.
var Groups = []Group{GroupActivePipeline, GroupInProgress, GroupOffers, GroupClosed}

// groupStatuses maps each group to its ordered member statuses. The member
// lists are pairwise disjoint and their union is the full enumeration.
var groupStatuses = map[Group][]Status{
	GroupActivePipeline: {StatusWishlist, StatusApplied, StatusFollowUp},
	GroupInProgress:     {StatusPhoneScreen, StatusInterviewing, StatusTechnicalTest, StatusFinalRound},
	GroupOffers:         {StatusOfferReceived, StatusNegotiating},
	GroupClosed:         {StatusAccepted, StatusRejected, StatusWithdrawn},
}

// expandableGroups marks the groups that may show per-status sub-columns.
var expandableGroups = map[Group]bool{
	GroupActivePipeline: true,
	GroupInProgress:     true,
	GroupClosed:         true,
}

var statusLabels = map[Status]string{
	StatusWishlist:      "Wishlist",
	StatusApplied:       "Applied",
	StatusFollowUp:      "Follow Up",
	StatusPhoneScreen:   "Phone Screen",
	StatusInterviewing:  "Interviewing",
	StatusTechnicalTest: "Technical Test",
	StatusFinalRound:    "Final Round",
	StatusOfferReceived: "Offer Received",
	StatusNegotiating:   "Negotiating",
	StatusAccepted:      "Accepted",
	StatusRejected:      "Rejected",
	StatusWithdrawn:     "Withdrawn",
}

var groupLabels = map[Group]string{
	GroupActivePipeline: "Active Pipeline",
	GroupInProgress:     "In Progress",
	GroupOffers:         "Offers",
	GroupClosed:         "Closed",
}

var statusGroup = buildStatusGroupIndex()

func buildStatusGroupIndex() map[Status]Group {
	idx := make(map[Status]Group)
	for _, g := range Groups {
		for _, s := range groupStatuses[g] {
			idx[s] = g
		}
	}
	return idx
}

// Statuses returns the full enumeration in pipeline order.
func Statuses() []Status {
	out := make([]Status, 0, len(statusGroup))
	for _, g := range Groups {
		out = append(out, groupStatuses[g]...)
	}
	return out
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statusGroup[s]; !ok {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return s, nil
}

// ParseGroup converts a raw string to a Group, returning an error for
// unknown values.
func ParseGroup(raw string) (Group, error) {
	g := Group(raw)
	if _, ok := groupStatuses[g]; !ok {
		return "", fmt.Errorf("unknown status group %q", raw)
	}
	return g, nil
}

// GroupOf returns the group owning the given status.
func GroupOf(s Status) Group {
	return statusGroup[s]
}

// Label returns the display label for the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Label returns the display label for the group.
func (g Group) Label() string {
	if l, ok := groupLabels[g]; ok {
		return l
	}
	return string(g)
}

// Statuses returns a copy of the group's ordered member statuses.
func (g Group) Statuses() []Status {
	members := groupStatuses[g]
	out := make([]Status, len(members))
	copy(out, members)
	return out
}

// DefaultStatus is the landing status when an application is dropped on the
// collapsed group column: always the earliest stage of the group.
func (g Group) DefaultStatus() Status {
	return groupStatuses[g][0]
}

// Expandable reports whether the group may show per-status sub-columns.
func (g Group) Expandable() bool {
	return expandableGroups[g]
}
