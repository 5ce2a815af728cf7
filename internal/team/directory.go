package team

import (
	"regexp"
	"strings"
	"time"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_'’-]+)\s+([\p{L}\p{N}_'’-]+)`)

// Directory holds the roster in insertion order together with a lookup table
// from normalized display name to member id. It is not safe for concurrent use;
// callers guard it.
type Directory struct {
	members      []Member
	positionByID map[string]int
	idByName     map[string]string
}

// NewDirectory builds a directory from the provided roster. Members with an empty
// id are skipped and duplicate ids keep their first occurrence.
func NewDirectory(members []Member) *Directory {
	directory := &Directory{}
	directory.Replace(members)
	return directory
}

// Replace swaps the whole roster and rebuilds the mention lookup table.
func (d *Directory) Replace(members []Member) {
	d.members = make([]Member, 0, len(members))
	d.positionByID = make(map[string]int, len(members))
	for _, member := range members {
		if strings.TrimSpace(member.ID) == "" {
			continue
		}
		if _, exists := d.positionByID[member.ID]; exists {
			continue
		}
		d.positionByID[member.ID] = len(d.members)
		d.members = append(d.members, member)
	}
	d.rebuildNameIndex()
}

// Add appends a member unless the id is already present. It reports whether the roster changed.
func (d *Directory) Add(member Member) bool {
	if strings.TrimSpace(member.ID) == "" {
		return false
	}
	if _, exists := d.positionByID[member.ID]; exists {
		return false
	}
	if d.positionByID == nil {
		d.positionByID = make(map[string]int)
	}
	d.positionByID[member.ID] = len(d.members)
	d.members = append(d.members, member)
	d.rebuildNameIndex()
	return true
}

// Get returns the member with the given id.
func (d *Directory) Get(id string) (Member, bool) {
	position, ok := d.positionByID[id]
	if !ok {
		return Member{}, false
	}
	return d.members[position], true
}

// SetStatus replaces status and last-seen for an existing member.
func (d *Directory) SetStatus(id string, status Status, seenAt time.Time) (Member, bool) {
	position, ok := d.positionByID[id]
	if !ok {
		return Member{}, false
	}
	d.members[position].Status = status
	d.members[position].LastSeen = seenAt
	return d.members[position], true
}

// Len returns the roster size.
func (d *Directory) Len() int {
	return len(d.members)
}

// All returns a copy of the roster in insertion order.
func (d *Directory) All() []Member {
	return d.filter(func(Member) bool { return true })
}

// Online returns members whose status is online, in roster order.
func (d *Directory) Online() []Member {
	return d.filter(func(member Member) bool { return member.Status == StatusOnline })
}

// ByRole returns members holding the given role, in roster order.
func (d *Directory) ByRole(role Role) []Member {
	return d.filter(func(member Member) bool { return member.Role == role })
}

// ResolveMentions extracts "@First Last" tokens from content and maps them to
// member ids through the name lookup table. Unknown names are dropped and each
// id appears once, in order of first mention.
func (d *Directory) ResolveMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return []string{}
	}
	mentions := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		id, ok := d.lookupMention(match[1], match[2])
		if !ok {
			continue
		}
		if _, duplicate := seen[id]; duplicate {
			continue
		}
		seen[id] = struct{}{}
		mentions = append(mentions, id)
	}
	return mentions
}

// lookupMention tries the captured name as written, then without a possessive
// suffix, then cut at the first hyphen or apostrophe ("@Emma Davis-related").
func (d *Directory) lookupMention(first, last string) (string, bool) {
	candidates := []string{last}
	for _, suffix := range []string{"'s", "’s"} {
		if trimmed, found := strings.CutSuffix(last, suffix); found && trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	if cut := strings.IndexAny(last, "-'’"); cut > 0 {
		candidates = append(candidates, last[:cut])
	}
	for _, candidate := range candidates {
		if id, ok := d.idByName[NormalizeName(first+" "+candidate)]; ok {
			return id, true
		}
	}
	return "", false
}

func (d *Directory) filter(keep func(Member) bool) []Member {
	result := make([]Member, 0, len(d.members))
	for _, member := range d.members {
		if keep(member) {
			result = append(result, member)
		}
	}
	return result
}

func (d *Directory) rebuildNameIndex() {
	d.idByName = make(map[string]string, len(d.members))
	for _, member := range d.members {
		key := NormalizeName(member.Name)
		if key == "" {
			continue
		}
		if _, taken := d.idByName[key]; taken {
			continue
		}
		d.idByName[key] = member.ID
	}
}

// NormalizeName lower-cases a display name and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
