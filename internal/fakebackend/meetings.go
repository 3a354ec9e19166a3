// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package fakebackend

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/validation"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (s *Server) seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.now().UTC().Truncate(time.Second)

	for _, u := range []struct{ email, password, nickname string }{
		{SeedEmail, SeedPassword, SeedNickname},
		{"hiker@email.com", "password2", "hiker_kim"},
		{"reader@email.com", "password3", "bookworm"},
	} {
		if _, err := s.createAccount(u.email, u.password, u.nickname); err != nil {
			panic(fmt.Sprintf("fakebackend seed: %v", err))
		}
	}

	for _, m := range []models.Meeting{
		{ID: 1, Title: "Saturday Hiking", Category: "outdoor", Location: "Bukhansan", StartsAt: base.Add(72 * time.Hour), Capacity: 10, HostID: 2},
		{ID: 2, Title: "Book Club", Category: "culture", Location: "Mapo Library", StartsAt: base.Add(120 * time.Hour), Capacity: 8, HostID: 3},
		{ID: 3, Title: "Board Game Night", Category: "games", Location: "Hongdae", StartsAt: base.Add(48 * time.Hour), Capacity: 6, HostID: SeedUserID},
		{ID: 4, Title: "Morning Run", Category: "outdoor", Location: "Han River", StartsAt: base.Add(24 * time.Hour), Capacity: 20, HostID: 2},
	} {
		m.Description = m.Title + " at " + m.Location
		s.meetings[m.ID] = &m
		s.participations[m.ID] = make(map[int64]string)
		s.rooms[m.ID] = &models.ChatRoom{MeetingID: m.ID, Title: m.Title}
	}
	s.participations[1][SeedUserID] = models.ParticipationApproved
	s.participations[2][SeedUserID] = models.ParticipationApproved
	s.participations[3][2] = models.ParticipationPending

	s.appendMessage(1, 2, "Trail starts at 9 sharp", base.Add(-30*time.Minute))
	s.appendMessage(1, SeedUserID, "See you there", base.Add(-20*time.Minute))
	s.appendMessage(2, 3, "Chapter 3 this week", base.Add(-time.Hour))

	for id := range s.meetings {
		s.recount(id)
	}
}

// recount must be called with s.mu held.
func (s *Server) recount(meetingID int64) {
	approved := 0
	for _, status := range s.participations[meetingID] {
		if status == models.ParticipationApproved {
			approved++
		}
	}
	s.meetings[meetingID].ParticipantCount = approved
	s.rooms[meetingID].MemberCount = approved + 1
}

// isMember reports whether userID hosts or is approved for the meeting.
// Must be called with s.mu held.
func (s *Server) isMember(meetingID, userID int64) bool {
	m, ok := s.meetings[meetingID]
	if !ok {
		return false
	}
	return m.HostID == userID || s.participations[meetingID][userID] == models.ParticipationApproved
}

// appendMessage stores a message and updates the room preview. Must be
// called with s.mu held.
func (s *Server) appendMessage(meetingID, senderID int64, content string, at time.Time) models.ChatMessage {
	s.nextMessageID++
	sender := s.accounts[senderID].user
	msg := models.ChatMessage{
		ID:        s.nextMessageID,
		MeetingID: meetingID,
		SenderID:  senderID,
		Sender:    models.Sender{ID: sender.ID, Nickname: sender.Nickname, ProfileImage: sender.ProfileImage},
		Content:   content,
		CreatedAt: at,
	}
	s.messages[meetingID] = append(s.messages[meetingID], msg)
	s.rooms[meetingID].LastMessage = msg.Preview()
	return msg
}

// PostMessage stores a message from senderID and broadcasts it to every
// realtime client that joined the room.
func (s *Server) PostMessage(meetingID, senderID int64, content string) (models.ChatMessage, error) {
	s.mu.Lock()
	if !s.isMember(meetingID, senderID) {
		s.mu.Unlock()
		return models.ChatMessage{}, fmt.Errorf("user %d is not a member of meeting %d", senderID, meetingID)
	}
	msg := s.appendMessage(meetingID, senderID, content, s.now().UTC())
	s.mu.Unlock()

	s.hub.broadcast(meetingID, msg)
	return msg, nil
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("size"), defaultPageSize)
	if page < 1 || size < 1 || size > maxPageSize {
		writeError(w, http.StatusBadRequest, "invalid paging parameters")
		return
	}
	category := q.Get("category")
	keyword := strings.ToLower(q.Get("keyword"))

	s.mu.Lock()
	matched := make([]models.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		if category != "" && m.Category != category {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(m.Title), keyword) {
			continue
		}
		matched = append(matched, *m)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	result := models.MeetingPage{Meetings: []models.Meeting{}, Total: len(matched), Page: page, Size: size}
	if start := (page - 1) * size; start < len(matched) {
		end := start + size
		if end > len(matched) {
			end = len(matched)
		}
		result.Meetings = matched[start:end]
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}
	s.mu.Lock()
	m, ok := s.meetings[id]
	var meeting models.Meeting
	if ok {
		meeting = *m
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleMyMeetings(w http.ResponseWriter, r *http.Request) {
	me := userIDFrom(r)
	mine := models.MyMeetings{Hosted: []models.Meeting{}, Joined: []models.Meeting{}}

	s.mu.Lock()
	for id, m := range s.meetings {
		switch {
		case m.HostID == me:
			mine.Hosted = append(mine.Hosted, *m)
		case s.participations[id][me] == models.ParticipationApproved:
			mine.Joined = append(mine.Joined, *m)
		}
	}
	s.mu.Unlock()

	sort.Slice(mine.Hosted, func(i, j int) bool { return mine.Hosted[i].ID < mine.Hosted[j].ID })
	sort.Slice(mine.Joined, func(i, j int) bool { return mine.Joined[i].ID < mine.Joined[j].ID })
	writeJSON(w, http.StatusOK, mine)
}

// handleParticipations lets the host set participant statuses.
func (s *Server) handleParticipations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}
	var req models.ParticipationsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	if m.HostID != userIDFrom(r) {
		writeError(w, http.StatusForbidden, "only the host can manage participations")
		return
	}
	for _, p := range req.Participations {
		if _, ok := s.accounts[p.UserID]; !ok || p.UserID == m.HostID {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid participant %d", p.UserID))
			return
		}
	}
	for _, p := range req.Participations {
		s.participations[id][p.UserID] = p.Status
	}
	s.recount(id)
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "participations updated"})
}

// handleChatRooms lists the caller's rooms, most recent activity first.
// Rooms without messages sort last.
func (s *Server) handleChatRooms(w http.ResponseWriter, r *http.Request) {
	me := userIDFrom(r)

	s.mu.Lock()
	rooms := make([]models.ChatRoom, 0)
	for id, room := range s.rooms {
		if !s.isMember(id, me) {
			continue
		}
		c := *room
		if room.LastMessage != nil {
			p := *room.LastMessage
			c.LastMessage = &p
		}
		rooms = append(rooms, c)
	}
	s.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessage, rooms[j].LastMessage
		switch {
		case a != nil && b != nil && !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return rooms[i].MeetingID < rooms[j].MeetingID
	})
	writeJSON(w, http.StatusOK, rooms)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
