package mcpserver

// LayoutContract describes the course directory layout and the identifier
// syntax for LLM consumers.
const LayoutContract = `# Course Layout Contract

A course directory mirrors the LMS course. Every resource type has one
folder; files may be nested in sub-folders but a file name must be unique
within its category folder.

## Folders

| category   | aliases           | folder        | extension |
|------------|-------------------|---------------|-----------|
| page       | pages, p          | pages/        | .md       |
| assignment | assignments, a    | assignments/  | .yaml     |
| quiz       | quizzes, q        | quizzes/      | .yaml     |
| outcome    | outcomes, o       | outcomes/     | .yaml     |

- ` + "`" + `_backups/` + "`" + ` holds gzipped backups. Never edit them.
- ` + "`" + `_templates/` + "`" + ` holds text/template files rendered with ` + "`" + `coursesync render` + "`" + `.
- ` + "`" + `<name>.public.yaml` + "`" + ` files are redacted student-facing exports.

File names are the resource title with ` + "`" + `/ \ : * ? " < > |` + "`" + ` replaced by ` + "`" + `_` + "`" + `.

## Identifiers

` + "```" + `
category/+Title     create a new remote object (fails if the title exists)
category/?Title     search by title (fails on zero or several matches)
category/:id        fetch by remote id (page url slug or numeric id)
category/*          every remote object of the category
` + "```" + `

## Pages

` + "```" + `markdown
---
title: Week 1 overview
published: true
---

Markdown body.
` + "```" + `

## Assignments

` + "```" + `yaml
name: Homework 1
url: https://lms.example.edu/courses/1/assignments/42
settings:
  published: true
  points_possible: 10
  grading_type: points
  submission:
    extensions: [py]
    submission_types: [online_upload]
  timing:
    due_at: January 15 2025, 11:59:00 PM
    unlock_at: ""
    lock_at: ""
  secrecy:
    anonymize_students: false
    anonymous_grading: false
description: |
  Markdown description.
` + "```" + `

Dates use the friendly form ` + "`" + `January 2 2006, 3:04:05 PM` + "`" + ` in the
configured time zone. An empty string means no date.

## Outcome banks

An outcome bank maps outcome names to their content:

` + "```" + `yaml
Reads code:
  display_name: Reading
  description: |
    Explains what a short program does.
  mastery_points: 3
  calculation_method: highest
` + "```" + `

Templates reference outcomes with
` + "`" + `{{ (load_outcome "Reads code").DisplayName }}` + "`" + ` and link resources with
` + "`" + `{{ make_link "Homework 1" }}` + "`" + `.
`
