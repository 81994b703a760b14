package playback

// Engine is the underlying media player.
type Engine interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	Time() (float64, error)
	Duration() (float64, error)
	Mute() error
	Unmute() error

	// OnLoaded and OnEnded register callbacks. Engines may invoke them from
	// any goroutine, but never from inside one of their own methods.
	OnLoaded(fn func())
	OnEnded(fn func())
}

// Evaluator receives whole playback seconds.
type Evaluator interface {
	Evaluate(second int)
	EvaluateAll(second int)
}

// Observer is refreshed by the controller as playback progresses.
type Observer interface {
	OnDuration(seconds float64)
	OnTime(seconds float64)
	OnSecond(second int)
	OnPlaying(playing bool)
}

type nopObserver struct{}

func (nopObserver) OnDuration(float64) {}
func (nopObserver) OnTime(float64)     {}
func (nopObserver) OnSecond(int)       {}
func (nopObserver) OnPlaying(bool)     {}

type nopEvaluator struct{}

func (nopEvaluator) Evaluate(int)    {}
func (nopEvaluator) EvaluateAll(int) {}
