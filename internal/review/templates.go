package review

import "html/template"

var articleTmpl = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html>
<head><title>Article Review</title></head>
<body>
<h1>Article {{.Index}} of {{.Total}}</h1>
<p>Progress: {{printf "%.0f" .Progress}}%</p>

<h2>{{.Article.Title}}</h2>
<ul>
  <li>Name: {{.Article.Name}}</li>
  <li>Count: {{.Article.Count}}</li>
  {{if .Link}}<li>Link: <a href="{{.Link}}">{{.Link}}</a></li>{{end}}
</ul>

<h3>Automated verdict</h3>
<p>Tweet-worthiness: {{.Article.TweetWorthiness}}</p>
<p>{{.Article.Summary}}</p>

{{if .Article.UserScore}}<p><em>Already reviewed: score {{.Article.UserScore}}.</em></p>{{end}}
{{if .Message}}<p><strong>{{.Message}}</strong></p>{{end}}

<form method="POST" action="/article/{{.Index}}">
  <button type="submit" name="action" value="agree">Agree with verdict</button>
</form>

<form method="POST" action="/article/{{.Index}}">
  <label>Your score (0-10): <input type="number" name="user_score" min="0" max="10"></label><br>
  <label>Your reasoning:<br><textarea name="user_reasoning" rows="4" cols="60"></textarea></label><br>
  <button type="submit" name="action" value="override">Submit override</button>
</form>
</body>
</html>
`))

var completedTmpl = template.Must(template.New("completed").Parse(`<!DOCTYPE html>
<html>
<head><title>Review Complete</title></head>
<body>
<h1>Review complete</h1>
<p>Every article in the batch has been reviewed.</p>
</body>
</html>
`))
