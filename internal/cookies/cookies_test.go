package cookies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetscape(t *testing.T) {
	data := "# Netscape HTTP Cookie File\n" +
		"# This is a comment\n" +
		"\n" +
		".google.com\tTRUE\t/\tTRUE\t1999999999\tSID\tabc123\n" +
		"#HttpOnly_.google.com\tTRUE\t/\tTRUE\t1999999999\tHSID\tdef456\n" +
		"photos.google.com\tFALSE\t/photos\tFALSE\t0\tPREF\tvolume=high\n" +
		"malformed line without tabs\n" +
		".google.com\tTRUE\t/\tTRUE\t1999999999\t\temptyname\n"

	jar, err := ParseNetscape(data)
	require.NoError(t, err)
	require.Len(t, jar, 3)

	assert.Equal(t, Cookie{
		Domain:            ".google.com",
		IncludeSubdomains: true,
		Path:              "/",
		Secure:            true,
		ExpiresAt:         1999999999,
		Name:              "SID",
		Value:             "abc123",
	}, jar[0])

	// HttpOnly prefix is stripped from the domain.
	assert.Equal(t, ".google.com", jar[1].Domain)
	assert.Equal(t, "HSID", jar[1].Name)

	assert.Equal(t, Cookie{
		Domain:            "photos.google.com",
		IncludeSubdomains: false,
		Path:              "/photos",
		Secure:            false,
		ExpiresAt:         0,
		Name:              "PREF",
		Value:             "volume=high",
	}, jar[2])
}

func TestParseNetscapeCRLF(t *testing.T) {
	jar, err := ParseNetscape(".google.com\tTRUE\t/\tTRUE\t0\tSID\tabc\r\n")
	require.NoError(t, err)
	require.Len(t, jar, 1)
	assert.Equal(t, "abc", jar[0].Value)
}

func TestParseNetscapeEmpty(t *testing.T) {
	_, err := ParseNetscape("# only comments\n\n")
	assert.ErrorIs(t, err, ErrNoCookies)
}

func TestParseString(t *testing.T) {
	jar, err := ParseString("SID=abc123; HSID=def456;  OSID=ghi=with=equals")
	require.NoError(t, err)
	require.Len(t, jar, 3)

	assert.Equal(t, "SID", jar[0].Name)
	assert.Equal(t, "abc123", jar[0].Value)
	assert.Equal(t, ".google.com", jar[0].Domain)
	assert.True(t, jar[0].IncludeSubdomains)
	assert.Equal(t, "/", jar[0].Path)
	assert.True(t, jar[0].Secure)
	assert.Equal(t, int64(0), jar[0].ExpiresAt)

	// Value keeps embedded equals signs.
	assert.Equal(t, "ghi=with=equals", jar[2].Value)
}

func TestParseStringInvalid(t *testing.T) {
	_, err := ParseString("this is not a cookie string")
	assert.ErrorIs(t, err, ErrNoCookies)

	_, err = ParseString("; ; ;")
	assert.ErrorIs(t, err, ErrNoCookies)
}

func TestHeader(t *testing.T) {
	jar := []Cookie{
		{Name: "SID", Value: "abc"},
		{Name: "HSID", Value: "def"},
	}
	assert.Equal(t, "SID=abc; HSID=def", Header(jar))
	assert.Equal(t, "", Header(nil))
}

func TestSerializeNetscapeRoundTrip(t *testing.T) {
	original := []Cookie{
		{Domain: ".google.com", IncludeSubdomains: true, Path: "/", Secure: true, ExpiresAt: 1999999999, Name: "SID", Value: "abc123"},
		{Domain: "photos.google.com", IncludeSubdomains: false, Path: "/photos", Secure: false, ExpiresAt: 0, Name: "PREF", Value: "x"},
	}
	parsed, err := ParseNetscape(SerializeNetscape(original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
