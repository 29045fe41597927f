package http

import (
	"net/http"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.ledger.Submit(r.Context(), userIDFrom(r.Context()), req.submission())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commitResponse{GroupID: h.GroupID, IDs: h.IDs})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListTransactions(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.GetGroup(r.Context(), userIDFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupResponse{
		GroupID:      g.ID,
		Total:        g.Total.String(),
		Installments: toTransactionResponses(g.Members),
	})
}

func (s *Server) handleCreateCreditCard(w http.ResponseWriter, r *http.Request) {
	var req creditCardRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.ledger.AddCreditCard(r.Context(), userIDFrom(r.Context()), req.card())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListCreditCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.ledger.ListCreditCards(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditCardResponses(cards))
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req investmentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := req.investment()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.ledger.AddInvestment(r.Context(), userIDFrom(r.Context()), inv)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.ListInvestments(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvestmentResponses(invs))
}
