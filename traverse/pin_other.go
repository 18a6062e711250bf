// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !linux

package traverse

import "github.com/grailbio/membench/errors"

func pin(int) error {
	return errors.E(errors.NotSupported, "cpu affinity")
}
