//go:build !darwin

package main

import "errors"

func probeMetal(string) error {
	return errors.New("go-metal requires macOS")
}
