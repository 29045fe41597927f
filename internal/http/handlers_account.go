package http

import (
	"net/http"

	"carteira/internal/core"
	"carteira/internal/entitlement"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg, err := s.accounts.Register(r.Context(), entitlement.RegistrationRequest{
		UserID:    userIDFrom(r.Context()),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caps := entitlement.Features(reg.Profile.Role)
	writeJSON(w, http.StatusCreated, toProfileResponse(reg.Profile, &caps))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, caps, err := s.accounts.Me(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p, &caps))
}

// handleCheckoutConfirm is the payment provider's webhook: it applies the
// paid plan to the user named in the body.
func (s *Server) handleCheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	change, err := s.accounts.ConfirmCheckout(r.Context(), entitlement.CheckoutConfirmation{
		UserID:     req.UserID,
		TargetPlan: core.Role(req.TargetPlan),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleChangeResponse(change))
}

func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	var req adminRoleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	role, err := core.ParseRole(req.TargetRole)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	change, err := s.accounts.GrantRole(r.Context(), entitlement.AdminGrant{
		ActorID:    userIDFrom(r.Context()),
		UserID:     req.UserID,
		TargetRole: role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleChangeResponse(change))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListUsers(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]profileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toProfileResponse(u, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func toRoleChangeResponse(c entitlement.RoleChange) roleChangeResponse {
	caps := entitlement.Features(c.Profile.Role)
	return roleChangeResponse{
		Profile: toProfileResponse(c.Profile, &caps),
		From:    string(c.From),
		Changed: c.Changed(),
	}
}
