package config

import "testing"

func TestPublisherLoadReturnsInitialConfig(t *testing.T) {
	p := NewPublisher(Default())
	got := p.Load()
	if got.Host.Role != "primary" {
		t.Fatalf("Load().Host.Role = %q, want %q", got.Host.Role, "primary")
	}
}

func TestPublisherPublishSwapsConfigAndBumpsGeneration(t *testing.T) {
	p := NewPublisher(Default())
	next := Default()
	next.Host.Name = "renamed-host"

	gen, err := p.Publish(next)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
	if got := p.Load().Host.Name; got != "renamed-host" {
		t.Fatalf("Load().Host.Name = %q, want %q", got, "renamed-host")
	}
	if p.Generation() != 1 {
		t.Fatalf("Generation() = %d, want 1", p.Generation())
	}
}

func TestPublisherPublishRejectsInvalidConfig(t *testing.T) {
	p := NewPublisher(Default())
	bad := Default()
	bad.Host.Role = "not-a-role"

	if _, err := p.Publish(bad); err == nil {
		t.Fatal("expected Publish to reject an invalid config")
	}
	if got := p.Load().Host.Role; got != "primary" {
		t.Fatalf("Load().Host.Role = %q, want unchanged %q after rejected publish", got, "primary")
	}
	if p.Generation() != 0 {
		t.Fatalf("Generation() = %d, want 0 after rejected publish", p.Generation())
	}
}
