package tlv

import (
	"io"

	"github.com/openharmony/security-deviceauth/errors"
)

// GroupRecord mirrors spec §4.1's GroupRecord layout. It is a plain data
// carrier independent of the domain Group type in package trust — trust
// converts to/from this shape at the persistence boundary so this package
// never needs to import trust (which would be a cycle, since trust imports
// tlv to persist itself).
type GroupRecord struct {
	Name                string
	ID                  string
	Type                uint32
	Visibility          int32
	ExpireTime          int32
	UserIDHash          string
	SharedUserIDHashes  []string
	Managers            []string
	Friends             []string
}

// DeviceRecord mirrors spec §4.1's DeviceRecord layout.
type DeviceRecord struct {
	GroupID          string
	UDID             string
	AuthID           string
	UserIDHash       string
	ServiceType      string
	Ext              string
	CredentialType   uint32
	DeviceType       uint32
	LastTm           int64
	SigningPublicKey []byte
}

// Database is the full persisted state: spec §4.1's top-level `db` record.
type Database struct {
	Version uint32
	Groups  []GroupRecord
	Devices []DeviceRecord
}

func encodeGroup(e *Encoder, g GroupRecord) {
	e.WriteComposite(TagGroupRecord, func(c *Encoder) {
		c.WriteString(TagGroupName, g.Name)
		c.WriteString(TagGroupID, g.ID)
		c.WriteU32(TagGroupType, g.Type)
		c.WriteI32(TagGroupVisibility, g.Visibility)
		c.WriteI32(TagGroupExpireTime, g.ExpireTime)
		c.WriteString(TagGroupUserIDHash, g.UserIDHash)
		c.WriteStringSeq(TagGroupSharedUserHashes, g.SharedUserIDHashes)
		c.WriteStringSeq(TagGroupManagers, g.Managers)
		c.WriteStringSeq(TagGroupFriends, g.Friends)
	})
}

func decodeGroup(payload []byte) (GroupRecord, error) {
	var g GroupRecord
	dec := NewDecoder(payload)
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return g, err
		}
		var derr error
		switch tag {
		case TagGroupName:
			g.Name, derr = ReadString(item)
		case TagGroupID:
			g.ID, derr = ReadString(item)
		case TagGroupType:
			g.Type, derr = ReadU32(item)
		case TagGroupVisibility:
			g.Visibility, derr = ReadI32(item)
		case TagGroupExpireTime:
			g.ExpireTime, derr = ReadI32(item)
		case TagGroupUserIDHash:
			g.UserIDHash, derr = ReadString(item)
		case TagGroupSharedUserHashes:
			g.SharedUserIDHashes, derr = ReadStringSeq(item)
		case TagGroupManagers:
			g.Managers, derr = ReadStringSeq(item)
		case TagGroupFriends:
			g.Friends, derr = ReadStringSeq(item)
		default:
			// forward-compatible: unknown tag, already skipped by Next()
		}
		if derr != nil {
			return g, derr
		}
	}
	return g, nil
}

func encodeDevice(e *Encoder, d DeviceRecord) {
	e.WriteComposite(TagDeviceRecord, func(c *Encoder) {
		c.WriteString(TagDeviceGroupID, d.GroupID)
		c.WriteString(TagDeviceUDID, d.UDID)
		c.WriteString(TagDeviceAuthID, d.AuthID)
		c.WriteString(TagDeviceUserIDHash, d.UserIDHash)
		c.WriteString(TagDeviceServiceType, d.ServiceType)
		c.WriteString(TagDeviceExt, d.Ext)
		c.WriteComposite(TagDeviceInfo, func(info *Encoder) {
			info.WriteU32(TagDeviceInfoCredType, d.CredentialType)
			info.WriteU32(TagDeviceInfoDevType, d.DeviceType)
			info.WriteI64(TagDeviceInfoLastTm, d.LastTm)
		})
		if len(d.SigningPublicKey) > 0 {
			c.WriteRaw(TagDeviceSigningKey, d.SigningPublicKey)
		}
	})
}

func decodeDevice(payload []byte) (DeviceRecord, error) {
	var d DeviceRecord
	dec := NewDecoder(payload)
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return d, err
		}
		var derr error
		switch tag {
		case TagDeviceGroupID:
			d.GroupID, derr = ReadString(item)
		case TagDeviceUDID:
			d.UDID, derr = ReadString(item)
		case TagDeviceAuthID:
			d.AuthID, derr = ReadString(item)
		case TagDeviceUserIDHash:
			d.UserIDHash, derr = ReadString(item)
		case TagDeviceServiceType:
			d.ServiceType, derr = ReadString(item)
		case TagDeviceExt:
			d.Ext, derr = ReadString(item)
		case TagDeviceInfo:
			derr = decodeDeviceInfo(item, &d)
		case TagDeviceSigningKey:
			d.SigningPublicKey = append([]byte(nil), item...)
		default:
		}
		if derr != nil {
			return d, derr
		}
	}
	return d, nil
}

func decodeDeviceInfo(payload []byte, d *DeviceRecord) error {
	dec := NewDecoder(payload)
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		var derr error
		switch tag {
		case TagDeviceInfoCredType:
			d.CredentialType, derr = ReadU32(item)
		case TagDeviceInfoDevType:
			d.DeviceType, derr = ReadU32(item)
		case TagDeviceInfoLastTm:
			d.LastTm, derr = ReadI64(item)
		}
		if derr != nil {
			return derr
		}
	}
	return nil
}

// Encode serializes db to its on-disk byte form.
func Encode(db Database) []byte {
	top := NewEncoder()
	top.WriteComposite(TagDB, func(e *Encoder) {
		version := db.Version
		if version == 0 {
			version = CurrentVersion
		}
		e.WriteU32(TagVersion, version)
		e.WriteComposite(TagGroups, func(g *Encoder) {
			for _, rec := range db.Groups {
				encodeGroup(g, rec)
			}
		})
		e.WriteComposite(TagDevices, func(dv *Encoder) {
			for _, rec := range db.Devices {
				encodeDevice(dv, rec)
			}
		})
	})
	return top.Bytes()
}

// Decode parses the on-disk byte form into a Database. Decode is
// all-or-nothing: on any error the returned Database is the zero value,
// never a partially populated one.
func Decode(data []byte) (db Database, err error) {
	defer func() {
		if r := recover(); r != nil {
			db = Database{}
			err = errors.Newf(errors.CodeTlvTruncated, "panic decoding database: %v", r)
		}
	}()

	top := NewDecoder(data)
	tag, payload, derr := top.Next()
	if derr != nil {
		return Database{}, derr
	}
	if tag != TagDB {
		return Database{}, errors.Newf(errors.CodeTlvBadLength, "unexpected top-level tag %#x", tag)
	}

	dec := NewDecoder(payload)
	var out Database
	for !dec.Done() {
		t, item, derr := dec.Next()
		if derr != nil {
			if derr == io.EOF {
				break
			}
			return Database{}, derr
		}
		switch t {
		case TagVersion:
			v, verr := ReadU32(item)
			if verr != nil {
				return Database{}, verr
			}
			out.Version = v
		case TagGroups:
			groups, gerr := decodeGroupSeq(item)
			if gerr != nil {
				return Database{}, gerr
			}
			out.Groups = groups
		case TagDevices:
			devices, derr2 := decodeDeviceSeq(item)
			if derr2 != nil {
				return Database{}, derr2
			}
			out.Devices = devices
		default:
			// unknown top-level tag: forward-compatible, ignore
		}
	}
	return out, nil
}

func decodeGroupSeq(payload []byte) ([]GroupRecord, error) {
	dec := NewDecoder(payload)
	var out []GroupRecord
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if tag != TagGroupRecord {
			continue
		}
		g, err := decodeGroup(item)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func decodeDeviceSeq(payload []byte) ([]DeviceRecord, error) {
	dec := NewDecoder(payload)
	var out []DeviceRecord
	for !dec.Done() {
		tag, item, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if tag != TagDeviceRecord {
			continue
		}
		d, err := decodeDevice(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
