package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/veloxparts/authcore"
)

func decodeBody(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Password     string `json:"password"`
		CustomerType string `json:"customerType"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.Register(requestContext(r), authcore.RegisterRequest{
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Email:        body.Email,
		Phone:        body.Phone,
		Password:     body.Password,
		CustomerType: body.CustomerType,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	identifier, err := authcore.ParseIdentifier(body.Identifier)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.engine.Login(requestContext(r), authcore.LoginRequest{
		Identifier: identifier,
		Password:   body.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, loginPayload(result))
}

func (s *Server) handleSendPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	if err := s.engine.SendPhoneOTP(requestContext(r), body.Phone); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "otp sent")
}

func (s *Server) handleSendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	if err := s.engine.SendEmailOTP(requestContext(r), body.Email); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "otp sent")
}

type verifyOTPBody struct {
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	OTP          string `json:"otp"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CustomerType string `json:"customerType"`
}

func (s *Server) handleVerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.VerifyPhoneOTP(requestContext(r), authcore.VerifyOTPRequest{
		Identifier:   body.Phone,
		OTP:          body.OTP,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		CustomerType: body.CustomerType,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, loginPayload(result))
}

func (s *Server) handleVerifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.VerifyEmailOTP(requestContext(r), authcore.VerifyOTPRequest{
		Identifier:   body.Email,
		OTP:          body.OTP,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		CustomerType: body.CustomerType,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, loginPayload(result))
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.GoogleLogin(requestContext(r), body.IDToken)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, loginPayload(result))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.Refresh(requestContext(r), body.RefreshToken)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity == nil {
		respondError(w, authcore.ErrMissingToken)
		return
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	if err := s.engine.Logout(requestContext(r), identity.UserID, body.RefreshToken); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity == nil {
		respondError(w, authcore.ErrMissingToken)
		return
	}

	if err := s.engine.LogoutAll(requestContext(r), identity.UserID); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "logged out everywhere")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	identifier, err := authcore.ParseIdentifier(body.Identifier)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.engine.ForgotPassword(requestContext(r), identifier); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "if the account exists, a reset code was sent")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier  string `json:"identifier"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	identifier, err := authcore.ParseIdentifier(body.Identifier)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.engine.ResetPassword(requestContext(r), authcore.ResetPasswordRequest{
		Identifier:  identifier,
		OTP:         body.OTP,
		NewPassword: body.NewPassword,
	}); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "password updated")
}

func loginPayload(result *authcore.LoginResult) map[string]any {
	return map[string]any{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         result.User,
	}
}
