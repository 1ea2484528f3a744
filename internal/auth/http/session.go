package http

import (
	"net/http"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/pkg/authsdk"
	"github.com/scrum0/scrum0/pkg/httpx"
	"github.com/scrum0/scrum0/pkg/slogx"
)

// SessionHandler exposes the session controller over JSON.
type SessionHandler struct {
	Controller *session.Controller
}

// HandleState handles GET /v1/auth/state
//
//	@Summary		Get session state
//	@Description	Returns the current session snapshot: user, loading flag, error message, connection status and phase.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.StateResponse	"Current session state"
//	@Router			/v1/auth/state [get].
func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w)
}

// HandleSignIn handles POST /v1/auth/signin
//
//	@Summary		Sign in
//	@Description	Authenticates with email and password. Without a configured backend a demo profile is created from the email.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignInRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.StateResponse	"Session state after sign-in"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or failed validation"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Another operation is in progress"
//	@Failure		422		{object}	authsdk.ErrorResponse	"Account has no profile"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Backend unreachable"
//	@Router			/v1/auth/signin [post].
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignInRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.Controller.SignIn(r.Context(), domain.Credential{
		Email:    req.Email,
		Password: req.Password,
	})
	h.respond(w, r, err)
}

// HandleSignUp handles POST /v1/auth/signup
//
//	@Summary		Sign up
//	@Description	Registers an account and creates its profile. Usernames are stored lower-cased and must be unique.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignUpRequest	true	"Registration details"
//	@Success		200		{object}	authsdk.StateResponse	"Session state after sign-up"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or failed validation"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Username taken or another operation in progress"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		502		{object}	authsdk.ErrorResponse	"Backend rejected the request"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Backend unreachable"
//	@Router			/v1/auth/signup [post].
func (h *SessionHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignUpRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.Controller.SignUp(r.Context(), domain.SignUpInput{
		Credential: domain.Credential{Email: req.Email, Password: req.Password},
		Username:   req.Username,
		FullName:   req.FullName,
	})
	h.respond(w, r, err)
}

// HandleSignOut handles POST /v1/auth/signout
//
//	@Summary		Sign out
//	@Description	Ends the session. Always succeeds locally; backend failures are logged.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.StateResponse	"Signed-out session state"
//	@Failure		409	{object}	authsdk.ErrorResponse	"Another operation is in progress"
//	@Router			/v1/auth/signout [post].
func (h *SessionHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.SignOut(r.Context()))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh session
//	@Description	Re-reads the backend session. A transient failure keeps the current user and reports the error.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.StateResponse	"Refreshed session state"
//	@Failure		409	{object}	authsdk.ErrorResponse	"Another operation is in progress"
//	@Failure		502	{object}	authsdk.ErrorResponse	"Backend error"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Backend unreachable"
//	@Router			/v1/auth/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Controller.Refresh(r.Context()))
}

// HandleUpdateProfile handles PATCH /v1/auth/profile
//
//	@Summary		Update profile
//	@Description	Changes the signed-in user's username, full name or avatar. Omitted fields are left untouched.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ProfileUpdateRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.StateResponse			"Session state with the updated profile"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Malformed body or failed validation"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Not signed in"
//	@Failure		409		{object}	authsdk.ErrorResponse			"Username taken or another operation in progress"
//	@Failure		503		{object}	authsdk.ErrorResponse			"Backend unreachable"
//	@Router			/v1/auth/profile [patch].
func (h *SessionHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ProfileUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.Controller.UpdateProfile(r.Context(), domain.ProfileUpdate{
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	h.respond(w, r, err)
}

// HandleConnection handles GET /v1/auth/connection
//
//	@Summary		Check backend connection
//	@Description	Probes the backend and records the result in the session state.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.ConnectionStatus	"connected, configured, error"
//	@Router			/v1/auth/connection [get].
func (h *SessionHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	status := h.Controller.CheckConnection(r.Context())
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toConnectionResponse(status))
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	h.writeState(w)
}

func (h *SessionHandler) writeState(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toStateResponse(h.Controller.State(), h.Controller.DemoMode()))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("invalid request body", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func toStateResponse(st session.State, demo bool) authsdk.StateResponse {
	resp := authsdk.StateResponse{
		Loading:  st.Loading,
		Error:    st.Error,
		Phase:    string(st.Phase),
		DemoMode: demo,
	}
	if st.User != nil {
		resp.User = &authsdk.Profile{
			ID:        st.User.ID,
			Email:     st.User.Email,
			Username:  st.User.Username,
			FullName:  st.User.FullName,
			AvatarURL: st.User.AvatarURL,
			CreatedAt: st.User.CreatedAt,
			UpdatedAt: st.User.UpdatedAt,
		}
	}
	if st.Connection != nil {
		c := toConnectionResponse(*st.Connection)
		resp.Connection = &c
	}
	return resp
}

func toConnectionResponse(s domain.ConnectionStatus) authsdk.ConnectionStatus {
	return authsdk.ConnectionStatus{
		Connected:  s.Connected,
		Configured: s.Configured,
		Error:      s.Error,
	}
}
