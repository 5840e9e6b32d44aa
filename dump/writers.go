// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package dump

import (
	"bytes"
	"os"
	"path/filepath"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/printers"
	"k8s.io/client-go/kubernetes/scheme"
)

const (
	dirMode  os.FileMode = 0700
	fileMode os.FileMode = 0600
)

func writeBytes(p string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), dirMode); err != nil {
		return err
	}
	return os.WriteFile(p, b, fileMode)
}

func writeString(p, v string) error {
	return writeBytes(p, []byte(v))
}

// writeYaml prints o with its apiVersion and kind, which typed lists returned
// by client-go leave empty.
func writeYaml(p string, o runtime.Object) error {
	var y printers.YAMLPrinter
	w, err := printers.NewTypeSetter(scheme.Scheme).WrapToPrinter(&y, nil)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err := w.PrintObj(o, &b); err != nil {
		return err
	}
	return writeBytes(p, b.Bytes())
}
