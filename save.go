package messenger

import (
	"encoding/binary"
	"time"

	"github.com/nocturne-im/messenger/crypto"
	"github.com/nocturne-im/messenger/friend"
	"github.com/nocturne-im/messenger/persist"
	"github.com/sirupsen/logrus"
)

// Save serializes self identity and the friend roster into the
// concatenated-sections format described in spec §6. It never fails on a
// roster that was only ever built through this package's own validating
// setters, but returns an error if a field was pushed past its persisted
// size limit by some other means.
func (m *Messenger) Save() ([]byte, error) {
	var out []byte

	out = append(out, persist.EncodeSection(persist.SectionName, persist.EncodeName(m.selfName))...)
	out = append(out, persist.EncodeSection(persist.SectionStatusMessage, persist.EncodeStatusMessage(m.selfStatusMessage))...)
	out = append(out, persist.EncodeSection(persist.SectionStatus, persist.EncodeStatus(m.selfUserStatus))...)

	var saved []persist.SavedFriend
	for i := 0; i < m.roster.NumFriends(); i++ {
		f, ok := m.roster.Get(i)
		if !ok {
			continue
		}
		sf := persist.SavedFriend{
			Status:         uint8(f.Status),
			RequestPayload: append([]byte(nil), f.RequestPayload...),
			Name:           f.Nickname,
			StatusMessage:  f.StatusMessage,
			UserStatus:     f.UserStatus,
			RequestNospam:  binary.LittleEndian.Uint32(f.RequestNospam[:]),
			LastSeenUnix:   uint64(f.LastSeen.Unix()),
		}
		for _, d := range f.Devices {
			sf.Devices = append(sf.Devices, persist.SavedDevice{
				Status:    uint8(d.Status),
				PublicKey: d.PublicKey,
			})
		}
		saved = append(saved, sf)
	}
	friendsBody, err := persist.EncodeFriends(saved)
	if err != nil {
		return nil, err
	}
	out = append(out, persist.EncodeSection(persist.SectionFriends, friendsBody)...)

	logrus.WithFields(logrus.Fields{
		"function":    "Messenger.Save",
		"num_friends": len(saved),
		"bytes":       len(out),
	}).Info("messenger state saved")

	return out, nil
}

// Load restores self identity and the friend roster from data previously
// produced by Save (or a legacy writer using OLDFRIENDS), re-establishing
// a transport connection for every recreated friend exactly as the live
// AddFriend/AddFriendNoRequest API would (spec §6 "On load").
//
// Per the §9 open-question resolution, a friend whose saved status is
// below Confirmed carries its name and status-message fields in the save
// file (both formats write them unconditionally) but Load ignores them:
// those fields only become meaningful once the friend has actually been
// heard from, and the lifecycle driver will ask for them again once it
// reaches Online.
func (m *Messenger) Load(data []byte) error {
	sections, err := persist.DecodeSections(data)
	if err != nil {
		return err
	}

	for _, sec := range sections {
		switch sec.Type {
		case persist.SectionName:
			m.selfName = string(sec.Body)
		case persist.SectionStatusMessage:
			m.selfStatusMessage = string(sec.Body)
		case persist.SectionStatus:
			status, err := persist.DecodeStatus(sec.Body)
			if err != nil {
				return err
			}
			m.selfUserStatus = status
		case persist.SectionFriends:
			saved, err := persist.DecodeFriends(sec.Body)
			if err != nil {
				return err
			}
			for _, sf := range saved {
				m.loadSavedFriend(sf)
			}
		case persist.SectionOldFriends:
			legacy, err := persist.DecodeOldFriends(sec.Body)
			if err != nil {
				return err
			}
			for _, lf := range legacy {
				m.loadLegacyFriend(lf)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Messenger.Load",
		"num_friends": m.roster.NumFriends(),
	}).Info("messenger state loaded")

	return nil
}

func (m *Messenger) loadSavedFriend(sf persist.SavedFriend) {
	if len(sf.Devices) == 0 {
		return
	}

	var friendIndex int
	var err error
	if friend.Status(sf.Status) >= friend.Confirmed {
		friendIndex, err = m.AddFriendNoRequest(sf.Devices[0].PublicKey)
	} else {
		var nospam [4]byte
		binary.LittleEndian.PutUint32(nospam[:], sf.RequestNospam)
		address := crypto.NewAddress(sf.Devices[0].PublicKey, nospam)
		friendIndex, err = m.AddFriend(address, sf.RequestPayload)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Messenger.loadSavedFriend",
			"error":    err.Error(),
		}).Warn("failed to restore friend")
		return
	}

	f, ok := m.roster.Get(friendIndex)
	if !ok {
		return
	}
	f.LastSeen = time.Unix(int64(sf.LastSeenUnix), 0)
	if friend.Status(sf.Status) >= friend.Confirmed {
		f.Nickname = sf.Name
		f.StatusMessage = sf.StatusMessage
		f.UserStatus = sf.UserStatus
		for _, d := range sf.Devices[1:] {
			_ = m.AddDevice(friendIndex, d.PublicKey)
		}
	}
}

func (m *Messenger) loadLegacyFriend(lf persist.LegacySavedFriend) {
	var friendIndex int
	var err error
	if friend.Status(lf.Status) >= friend.Confirmed {
		friendIndex, err = m.AddFriendNoRequest(lf.PublicKey)
	} else {
		var nospam [4]byte
		binary.LittleEndian.PutUint32(nospam[:], lf.Nospam)
		address := crypto.NewAddress(lf.PublicKey, nospam)
		friendIndex, err = m.AddFriend(address, []byte(" "))
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Messenger.loadLegacyFriend",
			"error":    err.Error(),
		}).Warn("failed to restore legacy friend")
		return
	}

	f, ok := m.roster.Get(friendIndex)
	if !ok {
		return
	}
	f.LastSeen = time.Unix(int64(lf.LastSeenUnix), 0)
	if friend.Status(lf.Status) >= friend.Confirmed {
		f.Nickname = lf.Name
		f.StatusMessage = lf.StatusMessage
		f.UserStatus = lf.UserStatus
	}
}
