package entitlement

import "carteira/internal/core"

// Feature is a capability unlocked by a role.
type Feature string

const (
	FeatureTransactions   Feature = "transactions"
	FeatureCreditCards    Feature = "credit_cards"
	FeatureDashboard      Feature = "dashboard"
	FeatureInvestments    Feature = "investments"
	FeatureAIAnalysis     Feature = "ai_analysis"
	FeatureAdministration Feature = "administration"
)

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

// Capabilities is what a role may do.
type Capabilities struct {
	Role          core.Role
	Features      []Feature
	CreditCardCap int // 0 none, Unlimited for no cap
}

// Features resolves the capabilities of role. Unknown roles get nothing.
func Features(role core.Role) Capabilities {
	c := Capabilities{Role: role}
	switch role {
	case core.RoleBasico:
		c.Features = []Feature{FeatureTransactions, FeatureCreditCards, FeatureDashboard}
		c.CreditCardCap = 1
	case core.RoleCompleto:
		c.Features = []Feature{FeatureTransactions, FeatureCreditCards, FeatureDashboard, FeatureInvestments, FeatureAIAnalysis}
		c.CreditCardCap = Unlimited
	case core.RoleAdmin:
		c.Features = []Feature{FeatureTransactions, FeatureCreditCards, FeatureDashboard, FeatureInvestments, FeatureAIAnalysis, FeatureAdministration}
		c.CreditCardCap = Unlimited
	}
	return c
}

func (c Capabilities) Allows(f Feature) bool {
	for _, have := range c.Features {
		if have == f {
			return true
		}
	}
	return false
}

// CanAddCreditCard reports whether a user already owning owned cards may
// register another one.
func (c Capabilities) CanAddCreditCard(owned int) bool {
	if !c.Allows(FeatureCreditCards) {
		return false
	}
	return c.CreditCardCap == Unlimited || owned < c.CreditCardCap
}
