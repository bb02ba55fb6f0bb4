// Package group describes one messaging group's aggregate statistics as
// served by the backend API.
package group

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// MediaType identifies one message kind in the per-media breakdown.
type MediaType string

const (
	MediaText     MediaType = "text"
	MediaPhoto    MediaType = "photo"
	MediaVoice    MediaType = "voice"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaPoll     MediaType = "poll"
	MediaSticker  MediaType = "sticker"
)

// MediaTypes returns every media type in display order.
func MediaTypes() []MediaType {
	return []MediaType{MediaText, MediaPhoto, MediaVoice, MediaVideo, MediaDocument, MediaPoll, MediaSticker}
}

// MediaStats holds the counters for one media type. The two emissions
// figures come from two different estimation methods (One Byte and SWD),
// both in grams.
type MediaStats struct {
	Messages         int64
	SizeKB           float64
	EmissionsOneByte float64
	EmissionsSWD     float64
}

// Group is the aggregate view of one messaging group. It is treated as
// immutable once decoded.
type Group struct {
	GroupID               string
	GroupName             string
	ParticipantsCount     int64
	TotalMessages         int64
	TotalSizeKB           float64
	TotalEmissionsOneByte float64
	TotalEmissionsSWD     float64
	Media                 map[MediaType]MediaStats
	LastReportTimestamp   Timestamp
	AdminNames            []string
	GroupLimits           Limit
	Donations             []string
}

// wireGroup mirrors the backend's camelCase payload minus the flat
// per-media fields, which are picked up separately.
type wireGroup struct {
	GroupID               string    `json:"groupId"`
	GroupName             string    `json:"groupName"`
	ParticipantsCount     int64     `json:"participantsCount"`
	TotalMessages         int64     `json:"totalMessages"`
	TotalSizeKB           float64   `json:"totalSizeKB"`
	TotalEmissionsOneByte float64   `json:"totalEmissionsOneByte"`
	TotalEmissionsSWD     float64   `json:"totalEmissionsSWD"`
	LastReportTimestamp   Timestamp `json:"lastReportTimestamp"`
	AdminNames            []string  `json:"adminNames"`
	GroupLimits           Limit     `json:"groupLimits"`
	Donations             []string  `json:"donations"`
}

// UnmarshalJSON decodes the backend representation, including the flat
// "<type>TotalMessages", "<type>TotalSize", "<type>EmissionsOneByteMethod"
// and "<type>EmissionsSWDMethod" fields.
func (g *Group) UnmarshalJSON(data []byte) error {
	var w wireGroup
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding group: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding group fields: %w", err)
	}

	media := make(map[MediaType]MediaStats, len(MediaTypes()))
	for _, mt := range MediaTypes() {
		var ms MediaStats
		fields := []struct {
			key string
			dst any
		}{
			{string(mt) + "TotalMessages", &ms.Messages},
			{string(mt) + "TotalSize", &ms.SizeKB},
			{string(mt) + "EmissionsOneByteMethod", &ms.EmissionsOneByte},
			{string(mt) + "EmissionsSWDMethod", &ms.EmissionsSWD},
		}
		present := false
		for _, f := range fields {
			v, ok := raw[f.key]
			if !ok || string(v) == "null" {
				continue
			}
			if err := json.Unmarshal(v, f.dst); err != nil {
				return fmt.Errorf("decoding %s: %w", f.key, err)
			}
			present = true
		}
		if present {
			media[mt] = ms
		}
	}

	*g = Group{
		GroupID:               w.GroupID,
		GroupName:             w.GroupName,
		ParticipantsCount:     w.ParticipantsCount,
		TotalMessages:         w.TotalMessages,
		TotalSizeKB:           w.TotalSizeKB,
		TotalEmissionsOneByte: w.TotalEmissionsOneByte,
		TotalEmissionsSWD:     w.TotalEmissionsSWD,
		Media:                 media,
		LastReportTimestamp:   w.LastReportTimestamp,
		AdminNames:            w.AdminNames,
		GroupLimits:           w.GroupLimits,
		Donations:             w.Donations,
	}
	return nil
}

// MarshalJSON writes the same flat shape UnmarshalJSON reads.
func (g Group) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"groupId":               g.GroupID,
		"groupName":             g.GroupName,
		"participantsCount":     g.ParticipantsCount,
		"totalMessages":         g.TotalMessages,
		"totalSizeKB":           g.TotalSizeKB,
		"totalEmissionsOneByte": g.TotalEmissionsOneByte,
		"totalEmissionsSWD":     g.TotalEmissionsSWD,
		"lastReportTimestamp":   g.LastReportTimestamp,
		"adminNames":            nonNil(g.AdminNames),
		"groupLimits":           g.GroupLimits,
		"donations":             nonNil(g.Donations),
	}
	for mt, ms := range g.Media {
		out[string(mt)+"TotalMessages"] = ms.Messages
		out[string(mt)+"TotalSize"] = ms.SizeKB
		out[string(mt)+"EmissionsOneByteMethod"] = ms.EmissionsOneByte
		out[string(mt)+"EmissionsSWDMethod"] = ms.EmissionsSWD
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// HasAdmin reports whether userName is listed as a group admin.
func (g *Group) HasAdmin(userName string) bool {
	if userName == "" {
		return false
	}
	return slices.Contains(g.AdminNames, userName)
}

// CheckTotals reports whether the per-media counters add up to the totals.
// Keeping them consistent is the backend's job; this is only a diagnostic.
func (g *Group) CheckTotals() error {
	if len(g.Media) == 0 {
		return nil
	}
	var msgs int64
	var size float64
	for _, ms := range g.Media {
		msgs += ms.Messages
		size += ms.SizeKB
	}
	if msgs != g.TotalMessages {
		return fmt.Errorf("group %s: media messages sum to %d, total is %d", g.GroupID, msgs, g.TotalMessages)
	}
	if math.Abs(size-g.TotalSizeKB) > 0.01 {
		return fmt.Errorf("group %s: media size sums to %.2f KB, total is %.2f KB", g.GroupID, size, g.TotalSizeKB)
	}
	return nil
}
