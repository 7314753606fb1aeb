// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"

	"github.com/emberscm/ember/modules/diferenco"
)

// MergeText runs the textual three-way merger over a blob's base/ours/
// theirs contents (§4.5). Inclusion of the base section in conflict hunks
// is mandatory, so this always forces diff3 style rather than the
// minimized default — unlike an interactive diff viewer, a recorded merge
// conflict must preserve every side for later resolution.
func MergeText(ctx context.Context, base, ours, theirs string) (merged string, conflicted bool, err error) {
	return diferenco.Merge(ctx, &diferenco.MergeOptions{
		TextO:  base,
		TextA:  ours,
		TextB:  theirs,
		LabelA: "HEAD",
		LabelB: "MERGE_HEAD",
		LabelO: "BASE",
		A:      diferenco.Histogram,
		Style:  diferenco.STYLE_DIFF3,
	})
}
