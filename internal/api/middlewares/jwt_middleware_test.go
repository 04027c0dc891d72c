package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citebase/citebase/internal/auth"
	"github.com/citebase/citebase/internal/models"
)

type singleUserDb struct {
	user *models.User
}

func (d *singleUserDb) CreateUser(context.Context, *models.User) error { return nil }
func (d *singleUserDb) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if d.user != nil && d.user.Email == email {
		return d.user, nil
	}
	return nil, nil
}
func (d *singleUserDb) CreateDocument(context.Context, *models.Document) error { return nil }
func (d *singleUserDb) GetDocumentByID(context.Context, string) (*models.Document, error) {
	return nil, nil
}
func (d *singleUserDb) ListDocumentsByUser(context.Context, string) ([]models.Document, error) {
	return nil, nil
}
func (d *singleUserDb) UpdateDocumentStatus(context.Context, string, string) error { return nil }
func (d *singleUserDb) Close() error                                               { return nil }

func TestJWTAttachesUser(t *testing.T) {
	secret := []byte("secret")
	db := &singleUserDb{user: &models.User{ID: "user-1", Email: "ada@example.com"}}

	token, err := auth.IssueToken(secret, "ada@example.com", time.Minute)
	require.NoError(t, err)

	var gotID, gotEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotEmail, _ = EmailFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWT(secret, db)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotID)
	assert.Equal(t, "ada@example.com", gotEmail)
}

func TestJWTMissingHeader(t *testing.T) {
	db := &singleUserDb{}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	JWT([]byte("secret"), db)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTUnknownUser(t *testing.T) {
	secret := []byte("secret")
	db := &singleUserDb{}

	token, err := auth.IssueToken(secret, "ghost@example.com", time.Minute)
	require.NoError(t, err)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWT(secret, db)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTBadToken(t *testing.T) {
	db := &singleUserDb{}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	JWT([]byte("secret"), db)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
