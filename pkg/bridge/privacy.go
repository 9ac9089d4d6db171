// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"github.com/luxfi/adbridge/pkg/native"
)

// updatePrivacy applies fn to the privacy state and forwards the result
func (m *Module) updatePrivacy(fn func(p *native.Privacy)) {
	m.privacyMu.Lock()
	defer m.privacyMu.Unlock()

	m.mu.Lock()
	fn(&m.privacy)
	p := copyPrivacy(m.privacy)
	m.mu.Unlock()

	m.sdk.SetPrivacy(p)
}

func copyPrivacy(p native.Privacy) native.Privacy {
	if p.GPPSectionIDs != nil {
		p.GPPSectionIDs = append([]int(nil), p.GPPSectionIDs...)
	}
	return p
}

// Privacy returns the privacy state last forwarded to the SDK
func (m *Module) Privacy() native.Privacy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyPrivacy(m.privacy)
}

// SetPrivacy replaces the whole privacy state
func (m *Module) SetPrivacy(p native.Privacy) {
	m.updatePrivacy(func(cur *native.Privacy) { *cur = copyPrivacy(p) })
}

// SetCCPAPrivacyString sets the IAB US privacy string
func (m *Module) SetCCPAPrivacyString(s string) {
	m.updatePrivacy(func(p *native.Privacy) { p.CCPAString = s })
}

func (m *Module) CCPAPrivacyString() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privacy.CCPAString
}

func (m *Module) SetIsDoNotSell(v bool) {
	m.updatePrivacy(func(p *native.Privacy) { p.DoNotSell = &v })
}

func (m *Module) IsDoNotSell() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privacy.DoNotSell != nil && *m.privacy.DoNotSell
}

// SetGPPString sets the IAB Global Privacy Platform string
func (m *Module) SetGPPString(s string) {
	m.updatePrivacy(func(p *native.Privacy) { p.GPPString = s })
}

func (m *Module) GPPString() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privacy.GPPString
}

func (m *Module) SetGPPSectionIDs(ids []int) {
	m.updatePrivacy(func(p *native.Privacy) { p.GPPSectionIDs = append([]int(nil), ids...) })
}

func (m *Module) GPPSectionIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.privacy.GPPSectionIDs...)
}

// SetIsUserConsent records GDPR consent
func (m *Module) SetIsUserConsent(v bool) {
	m.updatePrivacy(func(p *native.Privacy) { p.UserConsent = &v })
}

func (m *Module) IsUserConsent() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privacy.UserConsent != nil && *m.privacy.UserConsent
}

// SetIsAgeRestrictedUser records COPPA applicability
func (m *Module) SetIsAgeRestrictedUser(v bool) {
	m.updatePrivacy(func(p *native.Privacy) { p.AgeRestricted = &v })
}

func (m *Module) IsAgeRestrictedUser() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privacy.AgeRestricted != nil && *m.privacy.AgeRestricted
}

// SetHashedUserID forwards an already hashed user id
func (m *Module) SetHashedUserID(hashed string) {
	m.mu.Lock()
	m.hashedUser = hashed
	m.mu.Unlock()

	m.sdk.SetHashedUserID(hashed)
}

// SetUserID hashes id with SHA3-256 and forwards the digest. The raw id
// is kept locally for UserID and never leaves the bridge.
func (m *Module) SetUserID(id string) {
	hashed := ""
	if id != "" {
		hashed = hashUserID(id)
	}

	m.mu.Lock()
	m.userID = id
	m.hashedUser = hashed
	m.mu.Unlock()

	m.sdk.SetHashedUserID(hashed)
}

// UserID returns the id last passed to SetUserID
func (m *Module) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// HashedUserID returns the hashed id currently forwarded to the SDK
func (m *Module) HashedUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hashedUser
}

// SetTargetingKeyValue sets a generic targeting pair. Generic pairs are
// user scoped.
func (m *Module) SetTargetingKeyValue(key, value string) {
	m.sdk.SetUserKeyValue(key, value)
}

// SetTargetingKeyValues sets several generic targeting pairs
func (m *Module) SetTargetingKeyValues(kv map[string]string) {
	for k, v := range kv {
		m.sdk.SetUserKeyValue(k, v)
	}
}

func (m *Module) SetUserKeyValue(key, value string) {
	m.sdk.SetUserKeyValue(key, value)
}

func (m *Module) SetAppKeyValue(key, value string) {
	m.sdk.SetAppKeyValue(key, value)
}

func (m *Module) SetBidderKeyValue(bidder, key, value string) {
	m.sdk.SetBidderKeyValue(bidder, key, value)
}

// ClearAllTargeting drops every key-value pair and the user id
func (m *Module) ClearAllTargeting() {
	m.mu.Lock()
	m.userID = ""
	m.hashedUser = ""
	m.mu.Unlock()

	m.sdk.ClearAllKeyValues()
	m.sdk.SetHashedUserID("")
	m.log.Debug("targeting cleared")
}
