package cookies

import (
	"crypto/rand"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"net/http"
	"time"
)

const CookieName = "schmagent-session-id"

const (
	secretKeySize = 32
	defaultMaxAge = time.Hour
)

// Codec stores the session id in a signed cookie.
type Codec struct {
	secretKey []byte
	maxAge    time.Duration
	secure    bool
	now       func() time.Time
}

func NewCodec(secretKey []byte, maxAge time.Duration, secure bool) *Codec {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Codec{
		secretKey: secretKey,
		maxAge:    maxAge,
		secure:    secure,
		now:       time.Now,
	}
}

// RandomSecretKey returns a key for one process lifetime, so cookies of a previous run are rejected.
func RandomSecretKey() ([]byte, error) {
	key := make([]byte, secretKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating cookie secret failed: %w", err)
	}
	return key, nil
}

func (instance *Codec) GetIdFromCookie(request *http.Request) uuid.UUID {
	cookie, err := request.Cookie(CookieName)
	if err != nil {
		log.Debug().Err(err).Msg("session id cookie can't be retrieved")
		return uuid.Nil
	}

	sessionId, err := VerifySignedKeyValue(cookie.Name, cookie.Value, instance.secretKey, instance.maxAge, instance.now())
	if err != nil {
		log.Error().Err(err).Msg("session id cookie value can't be verified")
		return uuid.Nil
	}

	id, err := uuid.Parse(sessionId)
	if err != nil {
		log.Error().Err(err).Msg("session id cookie contains invalid id")
		return uuid.Nil
	}
	return id
}

func (instance *Codec) SetIdToCookie(id uuid.UUID) *http.Cookie {
	value, err := SignKeyValue(CookieName, id.String(), instance.secretKey, instance.now())
	if err != nil {
		log.Error().Err(err).Msg("cookies.SignKeyValue() failed")
		return nil
	}

	cookie := http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(instance.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   instance.secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &cookie
}
