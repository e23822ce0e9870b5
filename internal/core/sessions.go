package core

import "sort"

// Sessions tracks which connections are subscribed to which document rooms.
// It keeps a reverse index so a connection can be dropped from every room it
// joined without scanning all rooms.
//
// Sessions is not safe for concurrent use; the Hub loop owns it.
type Sessions struct {
	rooms  map[string]map[string]struct{}
	joined map[string]map[string]struct{}
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to the room, creating the room on first use.
// Returns true if the connection was not already a member.
func (s *Sessions) Join(roomID, connID string) bool {
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		s.rooms[roomID] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}

	rooms, ok := s.joined[connID]
	if !ok {
		rooms = make(map[string]struct{})
		s.joined[connID] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave removes connID from the room and evicts the room once it is empty.
// Returns true if the connection was a member.
func (s *Sessions) Leave(roomID, connID string) bool {
	members, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(s.rooms, roomID)
	}

	if rooms, ok := s.joined[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(s.joined, connID)
		}
	}
	return true
}

// MembersOf returns a sorted snapshot of the room's members.
func (s *Sessions) MembersOf(roomID string) []string {
	return sortedKeys(s.rooms[roomID])
}

// RoomsOf returns a sorted snapshot of the rooms connID has joined.
func (s *Sessions) RoomsOf(connID string) []string {
	return sortedKeys(s.joined[connID])
}

// IsMember reports whether connID is currently subscribed to roomID.
func (s *Sessions) IsMember(roomID, connID string) bool {
	_, ok := s.rooms[roomID][connID]
	return ok
}

// RemoveConnectionEverywhere drops connID from every room it joined and
// returns the affected room ids.
func (s *Sessions) RemoveConnectionEverywhere(connID string) []string {
	rooms := s.RoomsOf(connID)
	for _, roomID := range rooms {
		s.Leave(roomID, connID)
	}
	delete(s.joined, connID)
	return rooms
}

// RoomCount returns the number of non-empty rooms.
func (s *Sessions) RoomCount() int {
	return len(s.rooms)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
