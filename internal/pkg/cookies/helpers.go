package cookies

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const issuedAtSize = 8

var signKeyValueError = func(err error) error {
	return fmt.Errorf("error signing key value: %w", err)
}

// SignKeyValue produces base64(signature | issuedAt | value), the signature covering key, issuedAt and value.
func SignKeyValue(key string, value string, secretKey []byte, issuedAt time.Time) (string, error) {
	if key == "" {
		return "", signKeyValueError(errors.New("empty key"))
	}

	if value == "" {
		return "", signKeyValueError(errors.New("empty value"))
	}

	if len(secretKey) == 0 {
		return "", signKeyValueError(errors.New("empty secret key"))
	}

	stamp := make([]byte, issuedAtSize)
	binary.BigEndian.PutUint64(stamp, uint64(issuedAt.Unix()))

	var result bytes.Buffer
	result.Write(signature(key, stamp, []byte(value), secretKey))
	result.Write(stamp)
	result.Write([]byte(value))

	return base64.StdEncoding.EncodeToString(result.Bytes()), nil
}

var verifySignedKeyValueError = func(err error) error {
	return fmt.Errorf("error verifying signed key value: %w", err)
}

// VerifySignedKeyValue returns the value of a SignKeyValue result. A maxAge of zero disables the age check.
func VerifySignedKeyValue(key string, signedValue string, secretKey []byte, maxAge time.Duration, now time.Time) (string, error) {
	if key == "" {
		return "", verifySignedKeyValueError(errors.New("empty key"))
	}

	if signedValue == "" {
		return "", verifySignedKeyValueError(errors.New("empty signedValue"))
	}

	signedValueBytes, err := base64.StdEncoding.DecodeString(signedValue)
	if err != nil {
		return "", verifySignedKeyValueError(err)
	}

	if len(signedValueBytes) < sha256.Size+issuedAtSize {
		return "", verifySignedKeyValueError(errors.New("signed value is too short"))
	}

	receivedSignature := signedValueBytes[:sha256.Size]
	stamp := signedValueBytes[sha256.Size : sha256.Size+issuedAtSize]
	value := signedValueBytes[sha256.Size+issuedAtSize:]

	if !hmac.Equal(receivedSignature, signature(key, stamp, value, secretKey)) {
		return "", verifySignedKeyValueError(errors.New("invalid signature"))
	}

	issuedAt := time.Unix(int64(binary.BigEndian.Uint64(stamp)), 0)
	if maxAge > 0 && now.Sub(issuedAt) > maxAge {
		return "", verifySignedKeyValueError(errors.New("signed value expired"))
	}

	return string(value), nil
}

func signature(key string, stamp []byte, value []byte, secretKey []byte) []byte {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(key))
	mac.Write(stamp)
	mac.Write(value)
	return mac.Sum(nil)
}
