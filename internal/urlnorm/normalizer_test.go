package urlnorm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-copy/internal/product"
)

func newLeonardo(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(Config{Domain: "leonardo.vn", ForceWWW: true})
	require.NoError(t, err)
	return n
}

func TestNewRequiresDomain(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Domain: "  "})
	require.Error(t, err)

	n, err := New(Config{Domain: "WWW.Leonardo.vn"})
	require.NoError(t, err)
	assert.Equal(t, "leonardo.vn", n.Domain())
}

func TestNormalizeAcceptsMerchantURLs(t *testing.T) {
	t.Parallel()

	n := newLeonardo(t)
	tests := []struct {
		name string
		raw  string
		want product.URL
	}{
		{"bare domain path", "leonardo.vn/p/1", "https://www.leonardo.vn/p/1"},
		{"at artifact and spaces", " @leonardo.vn/ao-thun ", "https://www.leonardo.vn/ao-thun"},
		{"http upgraded", "http://leonardo.vn/ao-thun", "https://www.leonardo.vn/ao-thun"},
		{"already canonical", "https://www.leonardo.vn/ao-thun", "https://www.leonardo.vn/ao-thun"},
		{"uppercase host", "HTTPS://WWW.LEONARDO.VN/Ao-Thun", "https://www.leonardo.vn/Ao-Thun"},
		{"root only", "leonardo.vn", "https://www.leonardo.vn/"},
		{"fragment dropped", "leonardo.vn/ao#reviews", "https://www.leonardo.vn/ao"},
		{"query kept", "leonardo.vn/ao?color=red", "https://www.leonardo.vn/ao?color=red"},
		{"port dropped", "https://leonardo.vn:443/ao", "https://www.leonardo.vn/ao"},
		{"url in query", "leonardo.vn/ao-thun?utm_source=https://facebook.com",
			"https://www.leonardo.vn/ao-thun?utm_source=https://facebook.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := n.Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	n := newLeonardo(t)
	for _, raw := range []string{
		"",
		"   @ ",
		"http://evil.com/x",
		"https://leonardo.vn.evil.com/x",
		"https://evilleonardo.vn/x",
		"https://shop.leonardo.vn/x",
		"ftp://leonardo.vn/x",
		"https://user@leonardo.vn/x",
	} {
		_, err := n.Normalize(raw)
		var verr *product.ValidationError
		require.Truef(t, errors.As(err, &verr), "expected ValidationError for %q, got %v", raw, err)
		assert.Equal(t, raw, verr.Input)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := newLeonardo(t)
	for _, raw := range []string{
		"leonardo.vn/p/1",
		" @leonardo.vn/ao-thun ",
		"http://www.leonardo.vn/a/b?c=d",
		"https://leonardo.vn",
		"leonardo.vn/ao-thun?utm_source=https://facebook.com",
	} {
		once, err := n.Normalize(raw)
		require.NoError(t, err)
		twice, err := n.Normalize(once.String())
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeWithoutForcedWWW(t *testing.T) {
	t.Parallel()

	n, err := New(Config{Domain: "leonardo.vn"})
	require.NoError(t, err)
	got, err := n.Normalize("leonardo.vn/p/1")
	require.NoError(t, err)
	assert.Equal(t, product.URL("https://leonardo.vn/p/1"), got)
}

func TestHomePage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.leonardo.vn/", HomePage("https://www.leonardo.vn/ao-thun?x=1"))
	assert.Equal(t, "", HomePage("not a url"))
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{"leonardo.vn/p/1", " @leonardo.vn/ao-thun ", "http://evil.com/x"} {
		f.Add(seed)
	}
	n, err := New(Config{Domain: "leonardo.vn", ForceWWW: true})
	if err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once, err := n.Normalize(raw)
		if err != nil {
			return
		}
		twice, err := n.Normalize(once.String())
		if err != nil {
			t.Fatalf("re-normalizing %q failed: %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalize not idempotent: %q -> %q", once, twice)
		}
	})
}
