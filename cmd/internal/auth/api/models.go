package authapi

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public profile shape. The full profile (about video)
// is returned only from /me.
type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	AvatarURL     string `json:"avatarUrl"`
	AboutText     string `json:"aboutText"`
	AboutVideoURL string `json:"aboutVideoUrl,omitempty"`
}

type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
