package cookies

import (
	"encoding/base64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var issuedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSignKeyValuePositive(t *testing.T) {
	signedValue, err := SignKeyValue("testKey", "testValue", []byte("testSecretKey"), issuedAt)

	assert.NotEmpty(t, signedValue)
	assert.NoError(t, err)
}

func TestSignKeyValueNegative(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		secretKey []byte
		expected  string
	}{
		{"empty key", "", "testValue", []byte("testSecretKey"), "error signing key value: empty key"},
		{"empty value", "testKey", "", []byte("testSecretKey"), "error signing key value: empty value"},
		{"empty secret", "testKey", "testValue", nil, "error signing key value: empty secret key"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			signedValue, err := SignKeyValue(test.key, test.value, test.secretKey, issuedAt)

			assert.Empty(t, signedValue)
			assert.EqualError(t, err, test.expected)
		})
	}
}

func TestVerifySignedKeyValuePositive(t *testing.T) {
	secretKey := []byte("testSecretKey")
	signedValue, err := SignKeyValue("testKey", "testValue", secretKey, issuedAt)
	require.NoError(t, err)

	verifiedValue, err := VerifySignedKeyValue("testKey", signedValue, secretKey, time.Hour, issuedAt.Add(time.Minute))

	assert.Equal(t, "testValue", verifiedValue)
	assert.NoError(t, err)
}

func TestVerifySignedKeyValueNegative(t *testing.T) {
	secretKey := []byte("testSecretKey")
	valid, err := SignKeyValue("testKey", "testValue", secretKey, issuedAt)
	require.NoError(t, err)

	tests := []struct {
		name        string
		key         string
		signedValue string
		secretKey   []byte
		now         time.Time
		expected    string
	}{
		{"empty key", "", valid, secretKey, issuedAt, "error verifying signed key value: empty key"},
		{"empty signed value", "testKey", "", secretKey, issuedAt, "error verifying signed key value: empty signedValue"},
		{"encoding", "testKey", "It is not BASE64 encoded value", secretKey, issuedAt,
			"error verifying signed key value: illegal base64 data at input byte 2"},
		{"too short", "testKey", base64.StdEncoding.EncodeToString([]byte("test")), secretKey, issuedAt,
			"error verifying signed key value: signed value is too short"},
		{"invalid signature", "testKey", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("test ", 12))), secretKey, issuedAt,
			"error verifying signed key value: invalid signature"},
		{"other key", "otherKey", valid, secretKey, issuedAt, "error verifying signed key value: invalid signature"},
		{"other secret", "testKey", valid, []byte("otherSecret"), issuedAt, "error verifying signed key value: invalid signature"},
		{"expired", "testKey", valid, secretKey, issuedAt.Add(2 * time.Hour), "error verifying signed key value: signed value expired"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			verifiedValue, err := VerifySignedKeyValue(test.key, test.signedValue, test.secretKey, time.Hour, test.now)

			assert.Empty(t, verifiedValue)
			assert.EqualError(t, err, test.expected)
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	secretKey, err := RandomSecretKey()
	require.NoError(t, err)
	codec := NewCodec(secretKey, time.Hour, false)
	id := uuid.New()

	cookie := codec.SetIdToCookie(id)
	require.NotNil(t, cookie)
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	request := httptest.NewRequest("GET", "/api/main", nil)
	request.AddCookie(cookie)

	assert.Equal(t, id, codec.GetIdFromCookie(request))
}

func TestCodecNegative(t *testing.T) {
	codec := NewCodec([]byte("secret"), time.Hour, true)

	request := httptest.NewRequest("GET", "/api/main", nil)
	assert.Equal(t, uuid.Nil, codec.GetIdFromCookie(request))

	foreign := NewCodec([]byte("other"), time.Hour, true).SetIdToCookie(uuid.New())
	request.AddCookie(foreign)
	assert.Equal(t, uuid.Nil, codec.GetIdFromCookie(request))
}

func TestCodecNegativeExpired(t *testing.T) {
	codec := NewCodec([]byte("secret"), time.Minute, true)
	codec.now = func() time.Time { return issuedAt }
	cookie := codec.SetIdToCookie(uuid.New())

	codec.now = func() time.Time { return issuedAt.Add(time.Hour) }
	request := httptest.NewRequest("GET", "/api/main", nil)
	request.AddCookie(cookie)

	assert.Equal(t, uuid.Nil, codec.GetIdFromCookie(request))
}
