package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewGenerator_DefaultBucket(t *testing.T) {
	g := NewGenerator(0)
	assert.Equal(t, DefaultBucket, g.Bucket())

	g = NewGenerator(-time.Second)
	assert.Equal(t, DefaultBucket, g.Bucket())

	g = NewGenerator(10 * time.Second)
	assert.Equal(t, 10*time.Second, g.Bucket())
}

func TestNewGenerator_SubSecondBucket(t *testing.T) {
	// The bucket divides whole Unix seconds; anything below one second is
	// raised so fingerprinting never divides by zero.
	g := NewGenerator(500 * time.Millisecond)
	assert.Equal(t, time.Second, g.Bucket())

	at := time.Date(2025, 6, 14, 10, 32, 10, 250_000_000, time.UTC)
	fp1 := g.Case("race-1", "loc-1", "42", at)
	fp2 := g.Case("race-1", "loc-1", "42", at.Add(500*time.Millisecond))
	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, fp1, g.Case("race-1", "loc-1", "42", at.Add(time.Second)))
}

func TestCase_SameBucket(t *testing.T) {
	g := NewGenerator(30 * time.Second)

	// 10:32:10 and 10:32:25 fall into the same 30-second bucket.
	t1 := time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC)
	t2 := time.Date(2025, 6, 14, 10, 32, 25, 0, time.UTC)

	fp1 := g.Case("race-1", "loc-1", "42", t1)
	fp2 := g.Case("race-1", "loc-1", "42", t2)

	assert.Equal(t, fp1, fp2)
}

func TestCase_BucketEdge(t *testing.T) {
	g := NewGenerator(30 * time.Second)

	// 10:32:29 and 10:32:31 straddle a bucket boundary: different
	// fingerprints even though they are two seconds apart.
	t1 := time.Date(2025, 6, 14, 10, 32, 29, 0, time.UTC)
	t2 := time.Date(2025, 6, 14, 10, 32, 31, 0, time.UTC)

	fp1 := g.Case("race-1", "loc-1", "42", t1)
	fp2 := g.Case("race-1", "loc-1", "42", t2)

	assert.NotEqual(t, fp1, fp2)
}

func TestCase_Discriminators(t *testing.T) {
	g := NewGenerator(30 * time.Second)
	at := time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC)

	base := g.Case("race-1", "loc-1", "42", at)

	tests := []struct {
		name     string
		race     string
		location string
		bib      string
	}{
		{"different race", "race-2", "loc-1", "42"},
		{"different location", "race-1", "loc-2", "42"},
		{"different bib", "race-1", "loc-1", "43"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, g.Case(tt.race, tt.location, tt.bib, at))
		})
	}
}

func TestCase_TimezoneIndependent(t *testing.T) {
	g := NewGenerator(30 * time.Second)

	utc := time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC)
	local := utc.In(time.FixedZone("CEST", 2*60*60))

	assert.Equal(t,
		g.Case("race-1", "loc-1", "42", utc),
		g.Case("race-1", "loc-1", "42", local),
	)
}
