package settings

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// SessionName is the cookie that carries visitor state.
const SessionName = "bootcamp-session"

// CookieKV stores values in a gorilla session. Call Save before the
// response is written.
type CookieKV struct {
	sess *sessions.Session
}

// NewCookieKV wraps a loaded session.
func NewCookieKV(sess *sessions.Session) *CookieKV {
	return &CookieKV{sess: sess}
}

func (kv *CookieKV) Get(key string) (string, bool) {
	v, ok := kv.sess.Values[key].(string)
	return v, ok
}

func (kv *CookieKV) Set(key, value string) { kv.sess.Values[key] = value }

func (kv *CookieKV) Delete(key string) { delete(kv.sess.Values, key) }

// Save writes the session cookie.
func (kv *CookieKV) Save(r *http.Request, w http.ResponseWriter) error {
	return kv.sess.Save(r, w)
}

// NewCookieStore builds the session store. hashKey signs cookies and must be
// at least 32 bytes; blockKey, when set, encrypts them and must be 16, 24 or
// 32 bytes.
func NewCookieStore(hashKey, blockKey []byte, secure bool, maxAge time.Duration) (*sessions.CookieStore, error) {
	if len(hashKey) < 32 {
		return nil, fmt.Errorf("session key must be at least 32 bytes, got %d", len(hashKey))
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("session block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}

	var store *sessions.CookieStore
	if len(blockKey) > 0 {
		store = sessions.NewCookieStore(hashKey, blockKey)
	} else {
		store = sessions.NewCookieStore(hashKey)
	}
	store.MaxAge(int(maxAge.Seconds()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// RandomKey returns a fresh key of n bytes, for development when no key is
// configured. Sessions signed with it do not survive a restart.
func RandomKey(n int) []byte {
	return securecookie.GenerateRandomKey(n)
}

// Load reads the visitor's session. A cookie that fails to decode (for
// example after a key rotation) yields a fresh session rather than an
// error.
func Load(store sessions.Store, r *http.Request) (*Session, *CookieKV) {
	sess, err := store.Get(r, SessionName)
	if err != nil {
		sess, _ = store.New(r, SessionName)
	}
	if sess.Values == nil {
		sess.Values = make(map[interface{}]interface{})
	}
	kv := NewCookieKV(sess)
	return New(kv), kv
}
