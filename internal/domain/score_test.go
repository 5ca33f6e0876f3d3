package domain

import "testing"

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name    string
		setup   func() *Game
		want    int
		wantErr error
	}{
		{
			name: "one correct one incorrect",
			setup: func() *Game {
				g := newTestGame("wolf", 6)
				g.ApplyGuess("w")
				g.ApplyGuess("z")
				g.ApplyGuess("wolf")
				return g
			},
			want: 500,
		},
		{
			name: "solve without letter guesses scores zero",
			setup: func() *Game {
				g := newTestGame("wolf", 6)
				g.ApplyGuess("wolf")
				return g
			},
			want: 0,
		},
		{
			name: "all correct",
			setup: func() *Game {
				g := newTestGame("go", 6)
				g.ApplyGuess("g")
				g.ApplyGuess("o")
				return g
			},
			want: 1000,
		},
		{
			name: "floor rounding",
			setup: func() *Game {
				g := newTestGame("wolf", 6)
				g.ApplyGuess("w")
				g.ApplyGuess("o")
				g.ApplyGuess("z")
				g.ApplyGuess("wold")
				return g
			},
			// 1000 * 2 / 3 floors to 666.
			want: 666,
		},
		{
			name: "in-progress game is a contract violation",
			setup: func() *Game {
				return newTestGame("wolf", 6)
			},
			wantErr: ErrInvalidGameState,
		},
		{
			name: "cancelled game is a contract violation",
			setup: func() *Game {
				g := newTestGame("wolf", 6)
				g.Cancel()
				return g
			},
			wantErr: ErrInvalidGameState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeScore(tt.setup())
			if err != tt.wantErr {
				t.Fatalf("ComputeScore() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ComputeScore() = %d, want %d", got, tt.want)
			}
		})
	}
}
