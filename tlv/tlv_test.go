package tlv

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/stretchr/testify/require"
)

func sampleDB() Database {
	return Database{
		Version: 1,
		Groups: []GroupRecord{
			{
				Name:               "livingroom",
				ID:                 "deadbeef",
				Type:               256,
				Visibility:         0,
				ExpireTime:         -1,
				UserIDHash:         "",
				SharedUserIDHashes: nil,
				Managers:           []string{"app1"},
				Friends:            nil,
			},
			{
				Name:               "",
				ID:                 "acct1",
				Type:               1,
				Visibility:         -1,
				ExpireTime:         30,
				UserIDHash:         "hash1",
				SharedUserIDHashes: []string{"hash2", "hash3"},
				Managers:           []string{"owner"},
				Friends:            []string{"app2", "app3"},
			},
		},
		Devices: []DeviceRecord{
			{
				GroupID:          "deadbeef",
				UDID:             "udid-1",
				AuthID:           "udid-1",
				UserIDHash:       "",
				ServiceType:      "svc",
				Ext:              "",
				CredentialType:   1,
				DeviceType:       0,
				LastTm:           1700000000,
				SigningPublicKey: []byte{0x01, 0x02, 0x03, 0x04},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	db := sampleDB()
	encoded := Encode(db)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	if diff := pretty.Compare(db, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	db := Database{Version: 1}
	decoded, err := Decode(Encode(db))
	require.NoError(t, err)
	require.Equal(t, db.Version, decoded.Version)
	require.Empty(t, decoded.Groups)
	require.Empty(t, decoded.Devices)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x00})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeTlvTruncated))
}

func TestDecodeBadLength(t *testing.T) {
	// claims a length far larger than the remaining buffer
	buf := []byte{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := Decode(buf)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeTlvBadLength))
}

func TestDecodeBadString(t *testing.T) {
	e := NewEncoder()
	e.WriteComposite(TagDB, func(c *Encoder) {
		c.WriteComposite(TagGroups, func(g *Encoder) {
			g.WriteComposite(TagGroupRecord, func(rec *Encoder) {
				// missing null terminator
				rec.WriteRaw(TagGroupName, []byte("nullfree"))
			})
		})
	})
	_, err := Decode(e.Bytes())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeTlvBadString))
}

func TestForwardCompatibleUnknownTag(t *testing.T) {
	e := NewEncoder()
	e.WriteComposite(TagDB, func(c *Encoder) {
		c.WriteU32(0x7777, 42) // unknown top-level tag
		c.WriteU32(TagVersion, 1)
	})
	db, err := Decode(e.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint32(1), db.Version)
}
