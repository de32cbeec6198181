package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	builtinGroup    = "Built-in Scenes"
	fileGroup       = "Scene Files"
	fileScenePrefix = "file:"
)

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Group       string `json:"group"`
	Type        string `json:"type"`               // "builtin" or "file"
	FilePath    string `json:"filePath,omitempty"` // file type only
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

func fileSceneName(id string) (string, bool) {
	if !strings.HasPrefix(id, fileScenePrefix) {
		return "", false
	}
	return strings.TrimPrefix(id, fileScenePrefix), true
}

func sceneFilePath(dir, name string) string {
	// Base keeps IDs from escaping the scenes directory
	return filepath.Join(dir, filepath.Base(name)+".json")
}

// ListFileScenes scans dir for *.json scene files. A missing directory yields no scenes.
func ListFileScenes(dir string) ([]SceneInfo, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan scenes directory: %w", err)
	}

	var scenes []SceneInfo
	var errs []string
	for _, path := range files {
		info, err := ParseSceneMetadata(path)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})

	if len(errs) > 0 {
		return scenes, fmt.Errorf("skipped unreadable scene files: %s", strings.Join(errs, "; "))
	}
	return scenes, nil
}

// ParseSceneMetadata reads the header fields of a scene file
func ParseSceneMetadata(path string) (SceneInfo, error) {
	filename := filepath.Base(path)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	info := SceneInfo{
		ID:          fileScenePrefix + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Group:       fileGroup,
		Type:        "file",
		FilePath:    path,
	}

	desc, err := Load(path)
	if err != nil {
		return info, fmt.Errorf("%s: %w", filename, err)
	}

	if desc.Name != "" {
		info.Name = desc.Name
		info.DisplayName = desc.Name
	}
	if desc.Group != "" {
		info.Group = desc.Group
	}
	info.Description = desc.Description
	return info, nil
}

// ListAllScenes returns built-in and file scenes, grouped by category.
// Unreadable files are skipped and reported through the returned error
// alongside the scenes that did load.
func ListAllScenes(dir string) (ScenesResponse, error) {
	var response ScenesResponse

	var all []SceneInfo
	for _, name := range Names() {
		all = append(all, SceneInfo{
			ID:          name,
			Name:        name,
			DisplayName: titleCase(name),
			Description: builtins[name].description,
			Group:       builtinGroup,
			Type:        "builtin",
		})
	}

	files, listErr := ListFileScenes(dir)
	all = append(all, files...)

	groupMap := make(map[string][]SceneInfo)
	for _, scene := range all {
		groupMap[scene.Group] = append(groupMap[scene.Group], scene)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for groupName := range groupMap {
		if groupName != builtinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	if group, ok := groupMap[builtinGroup]; ok {
		response.Groups = append(response.Groups, SceneGroup{Name: builtinGroup, Scenes: group})
	}
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{Name: groupName, Scenes: groupMap[groupName]})
	}

	return response, listErr
}

// titleCase converts a filename-style string to title case
// e.g., "cornell-empty" -> "Cornell Empty"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}

	return strings.Join(words, " ")
}
