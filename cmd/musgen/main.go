package main

import (
	"os"
	"reflect"
	"strings"

	musgen "github.com/mus-format/musgen-go/mus"
	genops "github.com/mus-format/musgen-go/options/generate"
	structops "github.com/mus-format/musgen-go/options/struct"
	typeops "github.com/mus-format/musgen-go/options/type"
	"github.com/poiesic/portfolioqa/core"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	if strings.HasSuffix(cwd, "core") {
		if err := os.Chdir(".."); err != nil {
			panic(err)
		}
	}
	g, err := musgen.NewCodeGenerator(
		genops.WithPkgPath("github.com/poiesic/portfolioqa/core"),
	)
	if err != nil {
		panic(err)
	}

	for _, t := range []reflect.Type{
		reflect.TypeFor[core.EntityID](),
		reflect.TypeFor[core.EntityType](),
		reflect.TypeFor[core.RelationKind](),
		reflect.TypeFor[core.ChunkID](),
		reflect.TypeFor[core.JobKind](),
		reflect.TypeFor[core.JobStatus](),
	} {
		g.AddDefinedType(t)
	}

	// Timestamps are stored as Unix microseconds.
	micro := typeops.WithTimeUnit(typeops.Micro)
	err = g.AddStruct(reflect.TypeFor[core.Entity](),
		structops.WithField(), // ID
		structops.WithField(), // Type
		structops.WithField(), // Name
		structops.WithField(), // Aliases
		structops.WithField(), // Attributes
		structops.WithField(micro),
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	err = g.AddStruct(reflect.TypeFor[core.Relationship](),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	err = g.AddStruct(reflect.TypeFor[core.Chunk](),
		structops.WithField(), // ID
		structops.WithField(), // EntityID
		structops.WithField(), // Text
		structops.WithField(), // Vector
		structops.WithField(), // Metadata
		structops.WithField(), // Tokens
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	err = g.AddStruct(reflect.TypeFor[core.IngestJob](),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(micro),
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	bs, err := g.Generate()
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile("./core/records_mus.gen.go", bs, 0644); err != nil {
		panic(err)
	}
}
