// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"sort"
)

// SimplePaths enumerates simple directed paths from source to target.
//
// Description:
//
//	Depth-first enumeration capped by maxPaths. This is a pure structural
//	query: it needs no fitted mechanisms and works on static-mode models.
//	Children are visited in sorted order, so the result is deterministic.
//
// Inputs:
//
//	source - Start node ID. Must exist.
//	target - End node ID. Must exist.
//	maxPaths - Cap on the number of returned paths. Values < 1 mean 1.
//
// Outputs:
//
//	[][]string - Paths as node ID sequences, each starting with source and
//	             ending with target. Empty when no path exists.
//	error - ErrNodeNotFound if either endpoint is unknown.
func (g *Graph) SimplePaths(source, target string, maxPaths int) ([][]string, error) {
	if !g.HasNode(source) {
		return nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, source)
	}
	if !g.HasNode(target) {
		return nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, target)
	}
	if maxPaths < 1 {
		maxPaths = 1
	}

	paths := make([][]string, 0)
	onPath := map[string]bool{source: true}
	stack := []string{source}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		if id == target {
			path := make([]string, len(stack))
			copy(path, stack)
			paths = append(paths, path)
			return len(paths) >= maxPaths
		}
		for _, child := range g.Children(id) {
			if onPath[child] {
				continue
			}
			onPath[child] = true
			stack = append(stack, child)
			done := dfs(child)
			stack = stack[:len(stack)-1]
			onPath[child] = false
			if done {
				return true
			}
		}
		return false
	}
	dfs(source)
	return paths, nil
}

// Descendants returns every node reachable from id, excluding id itself,
// in sorted order.
//
// Errors:
//
//	ErrNodeNotFound - id is unknown
func (g *Graph) Descendants(id string) ([]string, error) {
	if !g.HasNode(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	visited := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.Children(cur) {
			if visited[child] {
				continue
			}
			visited[child] = true
			queue = append(queue, child)
		}
	}
	delete(visited, id)

	result := make([]string, 0, len(visited))
	for nid := range visited {
		result = append(result, nid)
	}
	sort.Strings(result)
	return result, nil
}
