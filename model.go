// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"fmt"
	"strings"
)

// isFullModelFile reports whether code already looks like a complete
// .nlogox XML document rather than bare NetLogo procedures.
func isFullModelFile(code string) bool {
	if strings.HasPrefix(strings.TrimSpace(code), "<?xml") {
		return true
	}
	head := code
	if len(head) > 200 {
		head = head[:200]
	}
	return strings.Contains(head, "<model")
}

// wrapModelEnvelope wraps raw NetLogo procedure code in a minimal
// .nlogox envelope with a default view, so callers can supply just
// globals/breeds/setup/go and still get a loadable model file. Code
// that is already a full .nlogox document passes through unchanged.
func wrapModelEnvelope(code string) string {
	if isFullModelFile(code) {
		return code
	}
	return fmt.Sprintf(modelEnvelope, xmlEscape(code))
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

// validateModelName rejects names that could escape the models
// directory. Model names are caller-supplied and become file-system
// paths, so this is the one input the adapter must not trust.
func validateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: model name is empty", ErrValidation)
	}
	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: invalid model name %q (no path separators allowed)", ErrValidation, name)
	}
	return nil
}

// modelEnvelope is the minimal .nlogox document: the caller's code plus
// a default 33x33 wrapped view and stock turtle/link shapes.
const modelEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<model version="NetLogo 7.0.3" snapToGrid="false">
  <code>%s</code>
  <widgets>
    <view x="210" wrappingAllowedX="true" y="10" frameRate="30.0" minPycor="-16" height="430" showTickCounter="true" patchSize="13.0" fontSize="10" wrappingAllowedY="true" width="430" tickCounterLabel="ticks" maxPycor="16" updateMode="1" maxPxcor="16" minPxcor="-16"></view>
  </widgets>
  <info><![CDATA[## WHAT IS IT?

A model created via the NetLogo MCP server.]]></info>
  <turtleShapes>
    <shape name="default" rotatable="true" editableColorIndex="0">
      <polygon color="-1920102913" filled="true" marked="true">
        <point x="150" y="5"></point>
        <point x="40" y="250"></point>
        <point x="150" y="205"></point>
        <point x="260" y="250"></point>
      </polygon>
    </shape>
    <shape name="circle" rotatable="false" editableColorIndex="0">
      <circle color="-1920102913" filled="true" marked="true" x="0" y="0" diameter="300"></circle>
    </shape>
  </turtleShapes>
  <linkShapes>
    <shape name="default" curviness="0.0">
      <lines>
        <line x="-0.2" visible="false">
          <dash value="0.0"></dash>
          <dash value="1.0"></dash>
        </line>
        <line x="0.0" visible="true">
          <dash value="1.0"></dash>
          <dash value="0.0"></dash>
        </line>
        <line x="0.2" visible="false">
          <dash value="0.0"></dash>
          <dash value="1.0"></dash>
        </line>
      </lines>
      <indicator>
        <shape name="link direction" rotatable="true" editableColorIndex="0">
          <line endX="90" startY="150" marked="true" color="-1920102913" endY="180" startX="150"></line>
          <line endX="210" startY="150" marked="true" color="-1920102913" endY="180" startX="150"></line>
        </shape>
      </indicator>
    </shape>
  </linkShapes>
</model>
`
