package playback

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/okian/blurber/internal/domain/model"
)

const (
	manifestName     = "voicepack.yaml"
	defaultTracksDir = "tracks"
)

// Manifest describes a voicepack in YAML as an alternative to one text file
// per category.
type Manifest struct {
	Name       string                      `yaml:"name"`
	TracksDir  string                      `yaml:"tracks_dir"`
	Categories map[model.Category][]string `yaml:"categories"`
}

// Pack maps categories to track files.
type Pack struct {
	Name   string
	tracks map[model.Category][]string
}

// Tracks returns the absolute track paths for cat.
func (p *Pack) Tracks(cat model.Category) []string { return p.tracks[cat] }

// LoadPack reads the voicepack stored in dir. A voicepack.yaml manifest takes
// precedence; otherwise each <category>.txt lists one track name per line.
// Track names resolve against the pack's tracks directory.
func LoadPack(dir string) (*Pack, error) {
	p := &Pack{Name: filepath.Base(dir), tracks: make(map[model.Category][]string)}

	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	switch {
	case err == nil:
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", manifestName, err)
		}
		if m.Name != "" {
			p.Name = m.Name
		}
		tracksDir := m.TracksDir
		if tracksDir == "" {
			tracksDir = defaultTracksDir
		}
		for cat, names := range m.Categories {
			p.add(filepath.Join(dir, tracksDir), cat, names)
		}
		return p, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", manifestName, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoicepack, filepath.Base(dir))
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnknownVoicepack, dir)
	}
	for _, cat := range model.Categories() {
		names, err := readLines(filepath.Join(dir, string(cat)+".txt"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.add(filepath.Join(dir, defaultTracksDir), cat, names)
	}
	return p, nil
}

func (p *Pack) add(tracksDir string, cat model.Category, names []string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		p.tracks[cat] = append(p.tracks[cat], filepath.Join(tracksDir, n))
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// Library loads voicepacks from a root directory on first use and picks a
// random track per cue.
type Library struct {
	root        string
	defaultPack string

	mu    sync.Mutex
	packs map[string]*Pack
	rng   *rand.Rand
}

// NewLibrary creates a library rooted at root. Cues without a voicepack use
// defaultPack.
func NewLibrary(root, defaultPack string, seed int64) *Library {
	return &Library{
		root:        root,
		defaultPack: defaultPack,
		packs:       make(map[string]*Pack),
		rng:         rand.New(rand.NewSource(seed)), //nolint:gosec // track choice is not security sensitive
	}
}

// Pack returns the named voicepack, loading it if needed.
func (l *Library) Pack(name string) (*Pack, error) {
	if name == "" {
		name = l.defaultPack
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoicepack, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.packs[name]; ok {
		return p, nil
	}
	p, err := LoadPack(filepath.Join(l.root, name))
	if err != nil {
		return nil, err
	}
	l.packs[name] = p
	return p, nil
}

// Pick returns a random track for cat in pack. It reports false when the
// pack is unknown or has no track for the category.
func (l *Library) Pick(pack string, cat model.Category) (string, bool) {
	p, err := l.Pack(pack)
	if err != nil {
		return "", false
	}
	tracks := p.Tracks(cat)
	if len(tracks) == 0 {
		return "", false
	}
	l.mu.Lock()
	i := l.rng.Intn(len(tracks))
	l.mu.Unlock()
	return tracks[i], true
}
