package auth

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipstack/firedata/docstore"
)

// userRecord is the shape of a document in the users collection.
type userRecord struct {
	Email        string `firestore:"email"`
	Username     string `firestore:"username"`
	AvatarURL    string `firestore:"avatarUrl"`
	PasswordHash string `firestore:"passwordHash"`
}

// PasswordProvider is an email/password Provider keeping user records with
// bcrypt password hashes in the document store. Session tokens are
// HMAC-signed; when a SessionStore is attached, active sessions are tracked
// there and revoked on sign-out.
type PasswordProvider struct {
	store    docstore.Store
	users    string
	secret   []byte
	tokenTTL time.Duration
	sessions *SessionStore

	mu       sync.Mutex
	current  *User
	token    string
	tokenExp time.Time
	subs     map[int]func(*User)
	nextSub  int
}

// NewPasswordProvider creates a provider over the given users collection.
func NewPasswordProvider(store docstore.Store, usersCollection, tokenSecret string, tokenTTL time.Duration) *PasswordProvider {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &PasswordProvider{
		store:    store,
		users:    usersCollection,
		secret:   []byte(tokenSecret),
		tokenTTL: tokenTTL,
		subs:     make(map[int]func(*User)),
	}
}

// WithSessionStore attaches a Redis session store for token tracking and
// revocation.
func (p *PasswordProvider) WithSessionStore(sessions *SessionStore) *PasswordProvider {
	p.sessions = sessions
	return p
}

func (p *PasswordProvider) SignUp(ctx context.Context, username, email, password string) (*User, error) {
	if username == "" {
		return nil, &Error{Code: "auth/invalid-credential", Message: "a username is required"}
	}
	if !strings.Contains(email, "@") {
		return nil, &Error{Code: "auth/invalid-email", Message: "invalid email address"}
	}
	if len(password) < 6 {
		return nil, &Error{Code: "auth/weak-password", Message: "password should be at least 6 characters"}
	}

	existing, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &Error{Code: "auth/email-already-in-use", Message: "the email address is already in use by another account"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &Error{Code: "auth/internal-error", Message: "could not hash password", Err: err}
	}

	record := userRecord{
		Email:        email,
		Username:     username,
		AvatarURL:    avatarURL(username),
		PasswordHash: string(hash),
	}
	fields, err := docstore.Encode(record)
	if err != nil {
		return nil, &Error{Code: "auth/internal-error", Message: "could not encode user record", Err: err}
	}
	id, err := p.store.Add(ctx, p.users, fields)
	if err != nil {
		return nil, &Error{Code: "auth/internal-error", Message: "could not create user", Err: err}
	}

	user := &User{ID: id, Email: email, DisplayName: username, AvatarURL: record.AvatarURL}
	if err := p.establishSession(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	if !strings.Contains(email, "@") {
		return nil, &Error{Code: "auth/invalid-email", Message: "invalid email address"}
	}

	doc, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &Error{Code: "auth/user-not-found", Message: "no account exists for this email"}
	}

	var record userRecord
	if err := docstore.Decode(doc.Fields, &record); err != nil {
		return nil, &Error{Code: "auth/internal-error", Message: "could not decode user record", Err: err}
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return nil, &Error{Code: "auth/wrong-password", Message: "the password is invalid"}
	}

	user := &User{ID: doc.ID, Email: record.Email, DisplayName: record.Username, AvatarURL: record.AvatarURL}
	if err := p.establishSession(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *PasswordProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if p.sessions != nil && token != "" {
		if err := p.sessions.Revoke(ctx, HashToken(token)); err != nil {
			return &Error{Code: "auth/internal-error", Message: "could not revoke session", Err: err}
		}
	}

	p.mu.Lock()
	p.current = nil
	p.token = ""
	p.tokenExp = time.Time{}
	p.mu.Unlock()

	p.notify()
	return nil
}

// Token returns the current session token, reissuing it when expired.
func (p *PasswordProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	user := p.current
	token := p.token
	exp := p.tokenExp
	p.mu.Unlock()

	if user == nil {
		return "", &Error{Code: "auth/unauthenticated", Message: "no user is signed in"}
	}
	if token != "" && time.Now().Before(exp) {
		return token, nil
	}

	if err := p.issueToken(ctx, user); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, nil
}

// OnStateChange registers fn, invokes it immediately with the current state,
// and returns an idempotent unsubscribe function.
func (p *PasswordProvider) OnStateChange(fn func(*User)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	current := copyUser(p.current)
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// CurrentUser returns the signed-in user, or nil.
func (p *PasswordProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyUser(p.current)
}

func (p *PasswordProvider) establishSession(ctx context.Context, user *User) error {
	p.mu.Lock()
	p.current = copyUser(user)
	p.mu.Unlock()

	if err := p.issueToken(ctx, user); err != nil {
		return err
	}
	p.notify()
	return nil
}

func (p *PasswordProvider) issueToken(ctx context.Context, user *User) error {
	exp := time.Now().Add(p.tokenTTL)
	token, err := IssueToken(p.secret, Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  uuid.NewString(),
		Exp:  exp.Unix(),
	})
	if err != nil {
		return &Error{Code: "auth/internal-error", Message: "could not issue token", Err: err}
	}

	if p.sessions != nil {
		data := SessionData{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
		if err := p.sessions.Save(ctx, HashToken(token), data, exp); err != nil {
			return &Error{Code: "auth/internal-error", Message: "could not save session", Err: err}
		}
	}

	p.mu.Lock()
	p.token = token
	p.tokenExp = exp
	p.mu.Unlock()
	return nil
}

func (p *PasswordProvider) findByEmail(ctx context.Context, email string) (*docstore.Document, error) {
	q := docstore.Query{
		OrderField: "email",
		Where:      []docstore.Where{{Field: "email", Op: "==", Value: email}},
		Limit:      1,
	}
	res, err := p.store.GetDocs(ctx, p.users, q, docstore.ReadOptions{})
	if err != nil {
		return nil, &Error{Code: "auth/internal-error", Message: "could not look up user", Err: err}
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	doc := res.Docs[0]
	return &doc, nil
}

func (p *PasswordProvider) notify() {
	p.mu.Lock()
	fns := make([]func(*User), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	current := copyUser(p.current)
	p.mu.Unlock()

	for _, fn := range fns {
		fn(current)
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}

// avatarURL builds an avatar from the username's initial letter on a random
// background color.
func avatarURL(username string) string {
	first, _ := utf8.DecodeRuneInString(username)
	initial := strings.ToUpper(string(first))
	background := fmt.Sprintf("%06x", rand.Intn(0xFFFFFF+1))
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=%s&color=FFFFFF", initial, background)
}
