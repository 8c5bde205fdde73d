package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickfire-quiz-service/internal/app"
	"quickfire-quiz-service/internal/domain"
)

// Handler exposes the quiz engine over JSON REST. Question DTOs never
// carry the correct flag; the answer key stays server side until the
// question is answered.
type Handler struct {
	sessions *app.SessionService
	powerups *app.PowerupService
	boards   *app.LeaderboardService
	sched    *app.Scheduler
	archives app.ArchiveRepository
	stats    app.StatsRepository
	ledger   app.RewardLedger
}

func NewHandler(
	sessions *app.SessionService,
	powerups *app.PowerupService,
	boards *app.LeaderboardService,
	sched *app.Scheduler,
	archives app.ArchiveRepository,
	stats app.StatsRepository,
	ledger app.RewardLedger,
) *Handler {
	return &Handler{
		sessions: sessions,
		powerups: powerups,
		boards:   boards,
		sched:    sched,
		archives: archives,
		stats:    stats,
		ledger:   ledger,
	}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/sessions", h.startSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /v1/sessions/{id}/answers", h.submitAnswer)
	mux.HandleFunc("POST /v1/sessions/{id}/powerups", h.activatePowerup)
	mux.HandleFunc("POST /v1/sessions/{id}/complete", h.completeSession)
	mux.HandleFunc("GET /v1/sessions/{id}/replay", h.replaySession)
	mux.HandleFunc("POST /v1/sessions/{id}/review", h.reviewSession)

	mux.HandleFunc("GET /v1/powerups", h.catalog)
	mux.HandleFunc("POST /v1/powerups/purchase", h.purchase)
	mux.HandleFunc("GET /v1/users/{id}/inventory", h.inventory)
	mux.HandleFunc("GET /v1/users/{id}/stats", h.userStats)
	mux.HandleFunc("GET /v1/users/{id}/rewards", h.userRewards)

	mux.HandleFunc("GET /v1/leaderboards", h.leaderboard)
	mux.HandleFunc("GET /v1/leaderboards/archives", h.leaderboardArchives)
	mux.HandleFunc("POST /v1/leaderboards/rollover", h.rollover)
}

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID         string            `json:"id"`
	Prompt     string            `json:"prompt"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Options    []optionView      `json:"options"`
}

func toQuestionView(q domain.Question) questionView {
	view := questionView{ID: q.ID, Prompt: q.Prompt, Difficulty: q.Difficulty}
	for _, opt := range q.Options {
		view.Options = append(view.Options, optionView{ID: opt.ID, Text: opt.Text})
	}
	return view
}

type startRequest struct {
	UserID   string `json:"userId"`
	ArtistID string `json:"artistId"`
	Country  string `json:"country"`
}

type startResponse struct {
	Session     domain.QuizSession `json:"session"`
	RemainingMS int64              `json:"remainingMs"`
	Question    *questionView      `json:"question,omitempty"`
	QueueIDs    []string           `json:"queueIds"`
	Resumed     bool               `json:"resumed"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ArtistID == "" {
		writeError(w, http.StatusBadRequest, "userId and artistId are required")
		return
	}

	res, err := h.sessions.Start(r.Context(), req.UserID, req.ArtistID, req.Country)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := startResponse{
		Session:     res.Session,
		RemainingMS: res.Remaining.Milliseconds(),
		QueueIDs:    res.QueueIDs,
		Resumed:     res.Resumed,
	}
	if res.Question.ID != "" {
		view := toQuestionView(res.Question)
		resp.Question = &view
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type answerRequest struct {
	QuestionID        string    `json:"questionId"`
	OptionID          string    `json:"optionId"`
	ClientTime        time.Time `json:"clientTime"`
	ClientRemainingMS int64     `json:"clientRemainingMs"`
}

type answerResponse struct {
	Correct         bool                   `json:"correct"`
	CanonicalOption string                 `json:"canonicalOption"`
	Breakdown       domain.AnswerBreakdown `json:"breakdown"`
	TimePenaltyMS   int64                  `json:"timePenaltyMs"`
	ShieldConsumed  bool                   `json:"shieldConsumed"`
	Streak          int                    `json:"streak"`
	RemainingMS     int64                  `json:"remainingMs"`
	NextQuestion    *questionView          `json:"nextQuestion,omitempty"`
	Completion      *completionView        `json:"completion,omitempty"`
}

type completionView struct {
	Session    domain.QuizSession   `json:"session"`
	FinalScore int                  `json:"finalScore"`
	Stats      domain.UserQuizStats `json:"stats"`
	Positions  []app.PositionDelta  `json:"positions,omitempty"`
	NewBadges  []domain.RewardGrant `json:"newBadges,omitempty"`
}

func toCompletionView(c *app.CompletionResult) *completionView {
	if c == nil {
		return nil
	}
	return &completionView{
		Session:    c.Session,
		FinalScore: c.FinalScore,
		Stats:      c.Stats,
		Positions:  c.Positions,
		NewBadges:  c.NewBadges,
	}
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.SubmitAnswer(r.Context(), app.SubmitInput{
		SessionID:       r.PathValue("id"),
		QuestionID:      req.QuestionID,
		OptionID:        req.OptionID,
		ClientTime:      req.ClientTime,
		ClientRemaining: time.Duration(req.ClientRemainingMS) * time.Millisecond,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := answerResponse{
		Correct:         res.Correct,
		CanonicalOption: res.CanonicalOption,
		Breakdown:       res.Breakdown,
		TimePenaltyMS:   res.TimePenalty.Milliseconds(),
		ShieldConsumed:  res.ShieldConsumed,
		Streak:          res.Streak,
		RemainingMS:     res.Remaining.Milliseconds(),
		Completion:      toCompletionView(res.Completion),
	}
	if res.NextQuestion != nil {
		view := toQuestionView(*res.NextQuestion)
		resp.NextQuestion = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

type activateRequest struct {
	PowerupID         string `json:"powerupId"`
	QuestionID        string `json:"questionId,omitempty"`
	ClientRemainingMS int64  `json:"clientRemainingMs"`
}

type activateResponse struct {
	Activation     domain.PowerupActivation `json:"activation"`
	Effect         string                   `json:"effect"`
	RemovedOptions []string                 `json:"removedOptions,omitempty"`
	NextQuestion   *questionView            `json:"nextQuestion,omitempty"`
	RemainingMS    int64                    `json:"remainingMs"`
	Completion     *completionView          `json:"completion,omitempty"`
}

func (h *Handler) activatePowerup(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.ActivatePowerup(r.Context(), app.ActivateInput{
		SessionID:       r.PathValue("id"),
		PowerupID:       req.PowerupID,
		QuestionID:      req.QuestionID,
		ClientRemaining: time.Duration(req.ClientRemainingMS) * time.Millisecond,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := activateResponse{
		Activation:     res.Activation,
		RemovedOptions: res.RemovedOptions,
		RemainingMS:    res.Remaining.Milliseconds(),
		Completion:     toCompletionView(res.Completion),
	}
	if res.Effect != nil {
		resp.Effect = res.Effect.Kind()
	}
	if res.NextQuestion != nil {
		view := toQuestionView(*res.NextQuestion)
		resp.NextQuestion = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

type completeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.sessions.Complete(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletionView(&res))
}

func (h *Handler) replaySession(w http.ResponseWriter, r *http.Request) {
	score, err := h.sessions.ReplayScore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"finalScore": score})
}

type reviewRequest struct {
	Clear bool `json:"clear"`
}

func (h *Handler) reviewSession(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.sessions.Review(r.Context(), r.PathValue("id"), req.Clear); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type catalogEntryView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Cost          int    `json:"cost"`
	Effect        string `json:"effect"`
	MaxPerSession int    `json:"maxPerSession"`
	CooldownMS    int64  `json:"cooldownMs"`
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	defs := h.powerups.Catalog()
	views := make([]catalogEntryView, 0, len(defs))
	for _, def := range defs {
		views = append(views, catalogEntryView{
			ID:            def.ID,
			Name:          def.Name,
			Cost:          def.Cost,
			Effect:        def.Effect.Kind(),
			MaxPerSession: def.MaxPerSession,
			CooldownMS:    def.Cooldown.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type purchaseRequest struct {
	UserID    string `json:"userId"`
	PowerupID string `json:"powerupId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.PowerupID == "" {
		writeError(w, http.StatusBadRequest, "userId and powerupId are required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	purchase, err := h.powerups.Purchase(r.Context(), req.UserID, req.PowerupID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	out := make(map[string]int)
	for _, def := range h.powerups.Catalog() {
		qty, err := h.powerups.Quantity(r.Context(), userID, def.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if qty > 0 {
			out[def.ID] = qty
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) userRewards(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	grants, err := h.ledger.GrantsFor(r.Context(), r.PathValue("id"), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func leaderboardKeyFromQuery(r *http.Request) (domain.LeaderboardKey, bool) {
	key := domain.LeaderboardKey{
		Scope:    domain.Scope(r.URL.Query().Get("scope")),
		Period:   domain.Period(r.URL.Query().Get("period")),
		Country:  r.URL.Query().Get("country"),
		ArtistID: r.URL.Query().Get("artistId"),
	}
	if key.Scope == "" {
		key.Scope = domain.ScopeGlobal
	}
	if key.Period == "" {
		key.Period = domain.PeriodDaily
	}
	switch key.Scope {
	case domain.ScopeGlobal:
		return key, key.Country == "" && key.ArtistID == ""
	case domain.ScopeCountry:
		return key, key.Country != "" && key.ArtistID == ""
	case domain.ScopeArtistGlobal:
		return key, key.Country == "" && key.ArtistID != ""
	case domain.ScopeArtistCountry:
		return key, key.Country != "" && key.ArtistID != ""
	}
	return key, false
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	key, ok := leaderboardKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scope, country, artistId combination")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	page, err := h.boards.Query(r.Context(), key, limit, offset, r.URL.Query().Get("userId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) leaderboardArchives(w http.ResponseWriter, r *http.Request) {
	key, ok := leaderboardKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scope, country, artistId combination")
		return
	}
	records, err := h.archives.List(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) rollover(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Rollover(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError translates domain sentinel errors into HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrPowerupNotFound),
		errors.Is(err, domain.ErrStatsNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionTerminal),
		errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrMaxUsesReached),
		errors.Is(err, domain.ErrInvalidRemoveOptions):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrInsufficientPoints):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrSubmissionTooSoon):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &cooldown):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
