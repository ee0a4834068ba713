package domain

import "time"

const (
	PartyStatusOpen   = "OPEN"
	PartyStatusFull   = "FULL"
	PartyStatusClosed = "CLOSED"
)

const (
	RequestStatusRequested = "REQUESTED"
	RequestStatusAccepted  = "ACCEPTED"
	RequestStatusRejected  = "REJECTED"
	RequestStatusCanceled  = "CANCELED"
)

// TaxiParty is a posted ride-sharing request grouping a host and
// accepted riders. Host identity fields are denormalized so the
// settlement flow does not need a separate user lookup.
type TaxiParty struct {
	ID                 int64     `json:"id" db:"id"`
	HostID             int64     `json:"hostId" db:"host_id"`
	HostName           string    `json:"hostName" db:"host_name"`
	HostShortStudentID string    `json:"hostShortStudentId" db:"host_short_student_id"`
	Origin             string    `json:"origin" db:"origin"`
	Destination        string    `json:"destination" db:"destination"`
	DepartureAt        time.Time `json:"departureAt" db:"departure_at"`
	Capacity           int       `json:"capacity" db:"capacity"`
	Status             string    `json:"status" db:"status"`
	ChatRoomID         int64     `json:"chatRoomId" db:"chat_room_id"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}

// RideRequest is one user's application to join a taxi party. Only
// ACCEPTED requests count toward the settlement participant set.
type RideRequest struct {
	ID             int64     `json:"id" db:"id"`
	TaxiPartyID    int64     `json:"taxiPartyId" db:"taxi_party_id"`
	UserID         int64     `json:"userId" db:"user_id"`
	Name           string    `json:"name" db:"name"`
	ShortStudentID string    `json:"shortStudentId" db:"short_student_id"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

type PartyDetailResponse struct {
	Party  *TaxiParty `json:"party"`
	IsHost bool       `json:"isHost"`
}

type PartyRequestsResponse struct {
	TaxiPartyID int64          `json:"taxiPartyId"`
	Requests    []*RideRequest `json:"requests"`
}
