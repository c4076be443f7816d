/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an event references a client that is not tracked,
	// e.g. a move arriving after its sender was purged.
	ErrNotFound = errors.New("client not found")

	// ErrNoOpponent is returned when an action that needs a pairing comes from an unpaired client.
	ErrNoOpponent = errors.New("client has no opponent")

	ErrInvalidNumber   = errors.New("number must be a string or a json number")
	ErrMatchFinished   = errors.New("match has already finished")
	ErrDuplicateClient = errors.New("client is already connected")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(""))
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
