package auth_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroom/studio-scheduler/auth"
)

const testBotToken = "12345:TEST-TOKEN"

func signedInitData(t *testing.T, user string) string {
	t.Helper()
	v := auth.NewVerifier(testBotToken)

	values := url.Values{}
	values.Set("auth_date", "1741600000")
	values.Set("query_id", "AAF03")
	if user != "" {
		values.Set("user", user)
	}
	values.Set("hash", v.Sign(values))
	return values.Encode()
}

func TestVerify_ValidSignature(t *testing.T) {
	initData := signedInitData(t,
		`{"id":987654321,"first_name":"Ivan","last_name":"Petrov","username":"ivan_drums","photo_url":"https://t.me/i/u.jpg"}`)

	user, err := auth.NewVerifier(testBotToken).Verify(initData)
	require.NoError(t, err)
	assert.Equal(t, int64(987654321), user.ID)
	assert.Equal(t, "Ivan", user.FirstName)
	assert.Equal(t, "ivan_drums", user.Username)
}

func TestVerify_TamperedPayloadRejected(t *testing.T) {
	initData := signedInitData(t, `{"id":987654321,"first_name":"Ivan"}`)

	values, err := url.ParseQuery(initData)
	require.NoError(t, err)
	values.Set("user", `{"id":111,"first_name":"Mallory"}`)

	_, err = auth.NewVerifier(testBotToken).Verify(values.Encode())
	assert.ErrorIs(t, err, auth.ErrBadSignature)
}

func TestVerify_WrongBotTokenRejected(t *testing.T) {
	initData := signedInitData(t, `{"id":987654321,"first_name":"Ivan"}`)

	_, err := auth.NewVerifier("99999:OTHER-TOKEN").Verify(initData)
	assert.ErrorIs(t, err, auth.ErrBadSignature)
}

func TestVerify_MissingPieces(t *testing.T) {
	v := auth.NewVerifier(testBotToken)

	_, err := v.Verify("auth_date=1741600000")
	assert.ErrorIs(t, err, auth.ErrBadSignature, "no hash at all")

	_, err = v.Verify(signedInitData(t, ""))
	assert.ErrorIs(t, err, auth.ErrNoUser, "valid signature but no user payload")

	_, err = v.Verify(signedInitData(t, `{"first_name":"NoID"}`))
	assert.ErrorIs(t, err, auth.ErrNoUser, "user payload without an id")
}
