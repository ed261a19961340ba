package plan

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ImageFile is a stored upload. Path locates the file on disk, Name keeps the
// original client filename that grouping and ordering are derived from.
type ImageFile struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// Group is a run of images sharing a filename prefix, ordered for display.
type Group struct {
	Key    string
	Images []ImageFile
}

// splitName derives the group key and sequence index from a filename.
// The key is the lowercased stem with its trailing digit run removed; the
// digits are the index. Names without trailing digits (or with a digit run
// too long for an int) are unindexed and sort after indexed members.
func splitName(name string) (key string, index int, indexed bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	key = strings.ToLower(stem[:i])
	digits := stem[i:]
	if digits == "" {
		return key, 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return key, 0, false
	}
	return key, n, true
}

// GroupImages partitions files by shared filename prefix. Groups come back in
// ascending key order; within a group, indexed images sort by their numeric
// suffix (ties broken by name), and unindexed images follow in name order.
func GroupImages(files []ImageFile) ([]Group, error) {
	if len(files) == 0 {
		return nil, &InvalidInputError{Reason: "no images provided"}
	}

	type member struct {
		file    ImageFile
		index   int
		indexed bool
	}
	byKey := make(map[string][]member)
	keys := make([]string, 0)
	for _, f := range files {
		key, idx, indexed := splitName(f.Name)
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], member{file: f, index: idx, indexed: indexed})
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		members := byKey[key]
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.indexed != b.indexed {
				return a.indexed
			}
			if a.indexed && a.index != b.index {
				return a.index < b.index
			}
			return a.file.Name < b.file.Name
		})
		images := make([]ImageFile, len(members))
		for i, m := range members {
			images[i] = m.file
		}
		groups = append(groups, Group{Key: key, Images: images})
	}
	return groups, nil
}
