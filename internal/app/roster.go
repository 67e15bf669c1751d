package app

import "regexp"

// hostIdentity matches the synthetic nicknames hosts and admins join with.
var hostIdentity = regexp.MustCompile(`(?i)^(host_|admin)`)

// HostNickname is the identity a host registers with in its own game.
func HostNickname(gameCode string) string {
	return "Host_" + gameCode
}

// Roster is the set of joined players, in join order, never including the host.
type Roster struct {
	host  string
	names []string
	index map[string]struct{}
}

func NewRoster(hostNickname string) *Roster {
	return &Roster{host: hostNickname, index: make(map[string]struct{})}
}

// IsHost reports whether nickname belongs to the host side rather than a player.
func (r *Roster) IsHost(nickname string) bool {
	return (r.host != "" && nickname == r.host) || hostIdentity.MatchString(nickname)
}

// Add registers a player. It is a no-op for the host, empty names and players already present.
func (r *Roster) Add(nickname string) bool {
	if nickname == "" || r.IsHost(nickname) {
		return false
	}
	if _, ok := r.index[nickname]; ok {
		return false
	}
	r.index[nickname] = struct{}{}
	r.names = append(r.names, nickname)
	return true
}

// Remove drops a player; absent names are ignored.
func (r *Roster) Remove(nickname string) bool {
	if _, ok := r.index[nickname]; !ok {
		return false
	}
	delete(r.index, nickname)
	for i, n := range r.names {
		if n == nickname {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return true
}

func (r *Roster) Count() int { return len(r.names) }

func (r *Roster) Empty() bool { return len(r.names) == 0 }

// Names returns a copy of the roster in join order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Roster) Clear() {
	r.names = nil
	r.index = make(map[string]struct{})
}
