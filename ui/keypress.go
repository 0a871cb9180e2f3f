package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"
)

// KeyEsc is sent on the key channel for the Escape key.
const KeyEsc rune = 27

var (
	keyCh     chan rune
	startOnce sync.Once
)

// Interactive reports whether stdin is a terminal that can deliver single
// key presses.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// StartKeyEvents returns a channel that emits single-key runes read without
// Enter. When no keyboard is available the channel never emits.
func StartKeyEvents() chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if !Interactive() {
			return
		}
		if err := keyboard.Open(); err != nil {
			return
		}
		go func() {
			defer keyboard.Close()
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyCh)
					return
				}
				switch {
				case key == 0:
					select {
					case keyCh <- char:
					default:
					}
				case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
					select {
					case keyCh <- KeyEsc:
					default:
					}
				}
			}
		}()
	})
	return keyCh
}

// DrainKeys consumes any immediately available keys to avoid accidental triggers.
func DrainKeys() {
	ch := StartKeyEvents()
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// WaitKey blocks until one of accept (case-insensitive) or Esc is pressed
// on keys and returns it lowercased. ok is false when keys is closed.
func WaitKey(keys <-chan rune, accept string) (r rune, ok bool) {
	for r := range keys {
		if r == KeyEsc {
			return KeyEsc, true
		}
		lr := []rune(strings.ToLower(string(r)))[0]
		if strings.ContainsRune(strings.ToLower(accept), lr) {
			return lr, true
		}
	}
	return 0, false
}
