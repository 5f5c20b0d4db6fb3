// Command scxmlrun is a tiny example host: it builds a traffic-light model
// with model.Builder, starts one session through the root Engine facade, and
// drives it with a TIMER event every two seconds, printing the active
// configuration and a DOT snapshot after each cycle. It exists to exercise
// the facade end to end the way the teacher's cmd/demo does for its Machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	scxml "github.com/scxmlgo/scxml"
	"github.com/scxmlgo/scxml/internal/core"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/production"
	"github.com/scxmlgo/scxml/model"
)

func buildModel() (*model.Model, error) {
	b := model.NewBuilder("traffic-light", "red")
	b.State("red").
		On("TIMER", "green", "").
		OnEntry(model.Log{Label: "light", Expr: "'red'"}).
		Up()
	b.State("green").
		On("TIMER", "yellow", "").
		OnEntry(model.Log{Label: "light", Expr: "'green'"}).
		Up()
	b.State("yellow").
		On("TIMER", "red", "").
		OnEntry(model.Log{Label: "light", Expr: "'yellow'"}).
		Up()
	return b.Build()
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	persister, err := production.NewJSONPersister(os.TempDir())
	if err != nil {
		panic(err)
	}

	publishChan := make(chan production.PublishedEvent, 100)
	publisher := production.NewChannelPublisher(publishChan)
	visualizer := &production.DefaultVisualizer{}

	engine := scxml.NewEngine(scxml.WithEngineLogger(logger))
	defer engine.Shutdown()

	m, err := buildModel()
	if err != nil {
		panic(err)
	}

	sess, err := engine.StartSession(m, "", "traffic-light",
		core.WithPersister(persister),
		core.WithPublisher(publisher),
		core.WithVisualizer(visualizer),
	)
	if err != nil {
		panic(err)
	}
	defer sess.Stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	cycles := 0
	for {
		select {
		case <-ticker.C:
			if err := sess.ProcessEvent(primitives.NewEvent("TIMER", nil)); err != nil {
				fmt.Printf("send error: %v\n", err)
			}
			fmt.Printf("\n--- cycle %d ---\n", cycles+1)
			fmt.Println("active states:", sess.ActiveStates())

			snap := sess.Snapshot()
			if err := persister.Save(context.Background(), snap); err != nil {
				fmt.Printf("persist error: %v\n", err)
			}
			fmt.Println(visualizer.ExportDOT(m.Root.ID, snap.Current))

			select {
			case pub := <-publishChan:
				fmt.Printf("published: %s (%s)\n", pub.Metadata.Transition, pub.EventName)
			default:
			}

			cycles++
			if cycles >= 12 {
				fmt.Println("demo complete after 12 cycles.")
				return
			}
		case <-sig:
			fmt.Println("\nshutting down.")
			return
		}
	}
}
