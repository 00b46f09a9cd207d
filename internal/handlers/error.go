package handlers

import "errors"

var (
	errJobRoleNotFound      = errors.New("job role not found")
	errCandidateNotFound    = errors.New("candidate not found")
	errOrganizationNotFound = errors.New("organization not found")
	errIntroductionNotFound = errors.New("introduction not found")
	errAlreadyResolved      = errors.New("introduction already resolved")
	errAlreadyExpired       = errors.New("introduction already expired")
)

// errRoleNotActive carries the role's current status back out of the
// transaction so the response can name it.
type errRoleNotActive struct {
	Status string
}

func (e errRoleNotActive) Error() string {
	return "job role is not active"
}

// errDuplicateIntroduction reports an existing non-terminal introduction
// for the same (candidate, job role) pair.
type errDuplicateIntroduction struct {
	ID string
}

func (e errDuplicateIntroduction) Error() string {
	return "an open introduction already exists for this candidate and role"
}

// errInsufficientCredits carries the would-be sender's balance at the
// time of the failed debit.
type errInsufficientCredits struct {
	Balance int
}

func (e errInsufficientCredits) Error() string {
	return "organization has no introduction credits left"
}

// errInvalidTransition carries both endpoints of a rejected lifecycle
// transition.
type errInvalidTransition struct {
	From string
	To   string
}

func (e errInvalidTransition) Error() string {
	return "invalid status transition"
}
