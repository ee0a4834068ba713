// Package fare computes the 1/N split of a taxi fare across the
// accepted riders of a party. Amounts are whole KRW; integer division
// truncates and the remainder is absorbed by the host so that the
// shares always sum to the total fare exactly.
package fare

import "errors"

// Validation errors. Messages are user-facing, so they stay in the
// service's locale.
var (
	ErrInvalidFare    = errors.New("유효하지 않은 정산 금액입니다")
	ErrNoParticipants = errors.New("정산할 참여자가 없습니다")
	ErrNoCompanions   = errors.New("정산에 필요한 동승자가 없습니다")
	ErrNoHost         = errors.New("정산 총대를 찾을 수 없습니다")
	ErrMultipleHosts  = errors.New("정산 총대가 두 명 이상입니다")
)

// Rider is a settlement participant before amounts are assigned.
type Rider struct {
	UserID int64
	Host   bool
}

// Share is one rider's computed amount.
type Share struct {
	UserID int64
	Amount int64
}

// Split divides totalFare evenly across riders, assigning the integer
// division remainder to the host. Input order is preserved.
//
// Preconditions, enforced here rather than assumed: the fare must be
// positive, there must be at least one companion besides the host, and
// exactly one rider must be flagged host. A missing host would silently
// drop the remainder, so it is a hard error.
func Split(totalFare int64, riders []Rider) ([]Share, error) {
	if totalFare <= 0 {
		return nil, ErrInvalidFare
	}
	if len(riders) == 0 {
		return nil, ErrNoParticipants
	}
	if len(riders) < 2 {
		return nil, ErrNoCompanions
	}

	hostIdx := -1
	for i, r := range riders {
		if !r.Host {
			continue
		}
		if hostIdx >= 0 {
			return nil, ErrMultipleHosts
		}
		hostIdx = i
	}
	if hostIdx < 0 {
		return nil, ErrNoHost
	}

	n := int64(len(riders))
	base := totalFare / n
	remainder := totalFare % n

	shares := make([]Share, len(riders))
	for i, r := range riders {
		shares[i] = Share{UserID: r.UserID, Amount: base}
	}
	shares[hostIdx].Amount += remainder

	return shares, nil
}

// Total sums the amounts of shares. Callers use it to assert the
// sum-equals-fare invariant when shares arrive over the wire.
func Total(shares []Share) int64 {
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}
