package payments

import (
	"github.com/vitwit/payments/types"
)

// DisputeResolver authorizes the caller of ResolveDispute and names the
// account that collects the loser's incentive.
type DisputeResolver interface {
	EnsureResolver(origin types.Origin) (types.AccountID, error)
}

// StaticResolvers accepts a fixed set of accounts as resolvers.
type StaticResolvers struct {
	accounts map[types.AccountID]struct{}
}

// NewStaticResolvers creates a resolver set. With no accounts every origin is rejected.
func NewStaticResolvers(accounts ...types.AccountID) *StaticResolvers {
	s := &StaticResolvers{accounts: make(map[types.AccountID]struct{}, len(accounts))}
	for _, a := range accounts {
		s.accounts[a] = struct{}{}
	}
	return s
}

func (s *StaticResolvers) EnsureResolver(origin types.Origin) (types.AccountID, error) {
	switch origin.Kind {
	case types.OriginSigned, types.OriginResolver:
	default:
		return "", types.NewError(types.ErrInvalidAction, "origin %q cannot resolve disputes", origin.Kind)
	}
	if _, ok := s.accounts[origin.Who]; !ok {
		return "", types.NewError(types.ErrInvalidAction, "%s is not a dispute resolver", origin.Who)
	}
	return origin.Who, nil
}
