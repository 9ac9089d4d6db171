// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/bridge"
	"github.com/luxfi/adbridge/pkg/native"
)

// InitRequest is the body of POST /sdk/init
type InitRequest struct {
	AppKey       string `json:"appKey"`
	HashedUserID string `json:"hashedUserId,omitempty"`
	Environment  string `json:"environment,omitempty"`
}

// EnvironmentRequest is the body of PUT /sdk/environment
type EnvironmentRequest struct {
	Environment    string `json:"environment,omitempty"`
	LoggingEnabled *bool  `json:"loggingEnabled,omitempty"`
	MinLogLevel    string `json:"minLogLevel,omitempty"`
}

// PrivacyRequest is the body of PUT /privacy. Absent fields are left unchanged.
type PrivacyRequest struct {
	CCPAString    *string `json:"ccpaPrivacyString,omitempty"`
	DoNotSell     *bool   `json:"isDoNotSell,omitempty"`
	GPPString     *string `json:"gppString,omitempty"`
	GPPSectionIDs []int   `json:"gppSectionIds,omitempty"`
	UserConsent   *bool   `json:"isUserConsent,omitempty"`
	AgeRestricted *bool   `json:"isAgeRestrictedUser,omitempty"`
}

// PrivacyState is the privacy view returned by the privacy endpoints
type PrivacyState struct {
	CCPAString    string `json:"ccpaPrivacyString"`
	DoNotSell     bool   `json:"isDoNotSell"`
	GPPString     string `json:"gppString"`
	GPPSectionIDs []int  `json:"gppSectionIds"`
	UserConsent   bool   `json:"isUserConsent"`
	AgeRestricted bool   `json:"isAgeRestrictedUser"`
}

// TargetingRequest is the body of PUT /targeting
type TargetingRequest struct {
	UserID       *string                      `json:"userId,omitempty"`
	HashedUserID *string                      `json:"hashedUserId,omitempty"`
	KeyValues    map[string]string            `json:"keyValues,omitempty"`
	User         map[string]string            `json:"user,omitempty"`
	App          map[string]string            `json:"app,omitempty"`
	Bidders      map[string]map[string]string `json:"bidders,omitempty"`
}

// CreateAdRequest is the body of POST /ads/:type
type CreateAdRequest struct {
	Identifier ads.Identifier `json:"adId"`
	Placement  string         `json:"placement"`
	Size       string         `json:"size,omitempty"`
}

// AdView describes one live instance
type AdView struct {
	Type       ads.Type       `json:"type"`
	Identifier ads.Identifier `json:"adId"`
	Placement  string         `json:"placement"`
	Ready      bool           `json:"ready"`
}

func (s *Server) initSDK(c *gin.Context) {
	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	if req.Environment != "" {
		s.module.SetEnvironment(req.Environment)
	}
	if err := s.module.Initialize(c.Request.Context(), bridge.InitConfig{
		AppKey:       req.AppKey,
		HashedUserID: req.HashedUserID,
	}); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"initialized": true,
		"version":     s.module.Version(),
		"environment": s.module.Environment(),
	})
}

func (s *Server) sdkStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"initialized":    s.module.IsInitialized(),
		"version":        s.module.Version(),
		"environment":    s.module.Environment(),
		"loggingEnabled": s.module.LoggingEnabled(),
		"minLogLevel":    s.module.MinLogLevel(),
		"instances":      len(s.module.Instances()),
		"subscribers":    s.module.Subscribers(),
	})
}

func (s *Server) setEnvironment(c *gin.Context) {
	var req EnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	if req.Environment != "" {
		s.module.SetEnvironment(req.Environment)
	}
	if req.LoggingEnabled != nil {
		s.module.SetLoggingEnabled(*req.LoggingEnabled)
	}
	if req.MinLogLevel != "" {
		s.module.SetMinLogLevel(req.MinLogLevel)
	}

	c.JSON(http.StatusOK, gin.H{
		"environment":    s.module.Environment(),
		"loggingEnabled": s.module.LoggingEnabled(),
		"minLogLevel":    s.module.MinLogLevel(),
	})
}

func (s *Server) privacyState() PrivacyState {
	return PrivacyState{
		CCPAString:    s.module.CCPAPrivacyString(),
		DoNotSell:     s.module.IsDoNotSell(),
		GPPString:     s.module.GPPString(),
		GPPSectionIDs: s.module.GPPSectionIDs(),
		UserConsent:   s.module.IsUserConsent(),
		AgeRestricted: s.module.IsAgeRestrictedUser(),
	}
}

func (s *Server) getPrivacy(c *gin.Context) {
	c.JSON(http.StatusOK, s.privacyState())
}

func (s *Server) setPrivacy(c *gin.Context) {
	var req PrivacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	s.module.SetPrivacy(mergePrivacy(s.module.Privacy(), req))
	c.JSON(http.StatusOK, s.privacyState())
}

func mergePrivacy(p native.Privacy, req PrivacyRequest) native.Privacy {
	if req.CCPAString != nil {
		p.CCPAString = *req.CCPAString
	}
	if req.DoNotSell != nil {
		p.DoNotSell = req.DoNotSell
	}
	if req.GPPString != nil {
		p.GPPString = *req.GPPString
	}
	if req.GPPSectionIDs != nil {
		p.GPPSectionIDs = req.GPPSectionIDs
	}
	if req.UserConsent != nil {
		p.UserConsent = req.UserConsent
	}
	if req.AgeRestricted != nil {
		p.AgeRestricted = req.AgeRestricted
	}
	return p
}

func (s *Server) setTargeting(c *gin.Context) {
	var req TargetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	if req.UserID != nil {
		s.module.SetUserID(*req.UserID)
	}
	if req.HashedUserID != nil {
		s.module.SetHashedUserID(*req.HashedUserID)
	}
	s.module.SetTargetingKeyValues(req.KeyValues)
	for k, v := range req.User {
		s.module.SetUserKeyValue(k, v)
	}
	for k, v := range req.App {
		s.module.SetAppKeyValue(k, v)
	}
	for bidder, kv := range req.Bidders {
		for k, v := range kv {
			s.module.SetBidderKeyValue(bidder, k, v)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":       s.module.UserID(),
		"hashedUserId": s.module.HashedUserID(),
	})
}

func (s *Server) clearTargeting(c *gin.Context) {
	s.module.ClearAllTargeting()
	c.Status(http.StatusNoContent)
}

// adKey parses the :type and :id path parameters
func adKey(c *gin.Context) (ads.Type, ads.Identifier, error) {
	t, err := ads.ParseType(c.Param("type"))
	if err != nil {
		return 0, "", err
	}
	return t, ads.Identifier(c.Param("id")), nil
}

func (s *Server) listAds(c *gin.Context) {
	entries := s.module.Instances()
	out := make([]AdView, 0, len(entries))
	for _, e := range entries {
		out = append(out, AdView{
			Type:       e.Key.Type,
			Identifier: e.Key.Identifier,
			Placement:  e.Placement,
			Ready:      e.Ad.IsReady(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ads": out, "total": len(out)})
}

func (s *Server) createAd(c *gin.Context) {
	raw := c.Param("type")
	t, err := ads.ParseType(raw)
	if err != nil {
		s.fail(c, err)
		return
	}

	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	var size ads.BannerSize
	if t == ads.Banner {
		if req.Size == "" && strings.EqualFold(raw, "mrec") {
			req.Size = string(ads.SizeMREC)
		}
		if size, err = ads.ParseBannerSize(req.Size); err != nil {
			s.fail(c, badRequest{err})
			return
		}
	}

	if err := s.module.Create(t, req.Identifier, req.Placement, size); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, AdView{
		Type:       t,
		Identifier: req.Identifier,
		Placement:  req.Placement,
	})
}

func (s *Server) loadAd(c *gin.Context) {
	s.adAction(c, s.module.Load)
}

func (s *Server) showAd(c *gin.Context) {
	s.adAction(c, s.module.Show)
}

func (s *Server) adAction(c *gin.Context, action func(ads.Type, ads.Identifier) error) {
	t, id, err := adKey(c)
	if err == nil {
		err = action(t, id)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"type": t, "adId": id})
}

func (s *Server) hideAd(c *gin.Context) {
	s.adAction(c, func(t ads.Type, id ads.Identifier) error {
		if t != ads.Banner {
			return badRequest{ads.ErrInvalidAdType}
		}
		return s.module.HideBanner(id)
	})
}

func (s *Server) autoRefresh(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}

	s.adAction(c, func(t ads.Type, id ads.Identifier) error {
		if t != ads.Banner {
			return badRequest{ads.ErrInvalidAdType}
		}
		if req.Enabled {
			return s.module.StartAutoRefresh(id)
		}
		return s.module.StopAutoRefresh(id)
	})
}

func (s *Server) isReady(c *gin.Context) {
	t, id, err := adKey(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "adId": id, "ready": s.module.IsReady(t, id)})
}

func (s *Server) destroyAd(c *gin.Context) {
	if err := s.module.DestroyAd(ads.Identifier(c.Param("id"))); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stats(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analytics disabled"})
		return
	}
	c.JSON(http.StatusOK, s.tracker.Snapshot())
}
